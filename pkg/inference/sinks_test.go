package inference

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyCKL/PromptAssistant/pkg/events"
)

type failingSink struct {
	err error
}

func (f *failingSink) PublishEvent(event events.Event) error {
	return f.err
}

func TestCollectSinkRecordsInOrder(t *testing.T) {
	sink := NewCollectSink()
	metadata := events.EventMetadata{}

	require.NoError(t, sink.PublishEvent(events.NewStartEvent(metadata)))
	require.NoError(t, sink.PublishEvent(events.NewPartialCompletionEvent(metadata, "Hi", "Hi")))
	require.NoError(t, sink.PublishEvent(events.NewFinalEvent(metadata, "Hi", "")))

	recorded := sink.Events()
	require.Len(t, recorded, 3)
	assert.Equal(t, events.EventTypeStart, recorded[0].Type())
	assert.Equal(t, events.EventTypePartialCompletion, recorded[1].Type())
	assert.Equal(t, events.EventTypeFinal, recorded[2].Type())

	sink.Reset()
	assert.Empty(t, sink.Events())
}

func TestNullSinkDiscardsEverything(t *testing.T) {
	sink := NewNullSink()
	assert.NoError(t, sink.PublishEvent(events.NewStartEvent(events.EventMetadata{})))
}

func TestConfigFansOutToAllSinks(t *testing.T) {
	first := NewCollectSink()
	second := NewCollectSink()

	cfg := NewConfig()
	require.NoError(t, ApplyOptions(cfg, WithSinks(first, second)))

	ev := events.NewFinalEvent(events.EventMetadata{}, "done", "")
	require.NoError(t, cfg.PublishEvent(ev))

	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)
}

func TestConfigPublishStopsAtFirstFailure(t *testing.T) {
	late := NewCollectSink()

	cfg := NewConfig()
	require.NoError(t, ApplyOptions(cfg,
		WithSink(&failingSink{err: errors.New("sink full")}),
		WithSink(late),
	))

	err := cfg.PublishEvent(events.NewFinalEvent(events.EventMetadata{}, "done", ""))
	assert.ErrorContains(t, err, "sink full")
	assert.Empty(t, late.Events())
}
