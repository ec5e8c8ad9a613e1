package inference

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"

	"github.com/DannyCKL/PromptAssistant/pkg/events"
)

// WatermillSink publishes events to a watermill Publisher. Distribution runs
// through a PublisherManager, which stamps a sequence number on every outgoing
// message so subscribers can re-order snapshots if needed. Additional topics
// (for example a raw-event debug dump) can share the same sink.
type WatermillSink struct {
	manager *events.PublisherManager
}

// NewWatermillSink creates a new WatermillSink that publishes to the given
// publisher and topic.
func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	manager := events.NewPublisherManager()
	manager.SubscribePublisher(topic, publisher)
	return &WatermillSink{
		manager: manager,
	}
}

// AddTopic fans events out to an additional publisher/topic pair.
func (w *WatermillSink) AddTopic(publisher message.Publisher, topic string) {
	w.manager.SubscribePublisher(topic, publisher)
}

// PublishEvent publishes the event to all subscribed watermill topics.
// The event is serialized to JSON and sent as a watermill message.
func (w *WatermillSink) PublishEvent(event events.Event) error {
	err := w.manager.Publish(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)
