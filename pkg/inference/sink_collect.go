package inference

import (
	"sync"

	"github.com/DannyCKL/PromptAssistant/pkg/events"
)

// CollectSink is an EventSink that records every published event in order.
// It backs tests and diagnostics that need to inspect the snapshot sequence a
// run produced.
type CollectSink struct {
	mu     sync.Mutex
	events []events.Event
}

func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

func (c *CollectSink) PublishEvent(event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (c *CollectSink) Events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]events.Event, len(c.events))
	copy(ret, c.events)
	return ret
}

// Reset drops all recorded events.
func (c *CollectSink) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

var _ EventSink = (*CollectSink)(nil)
