package events

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	published map[string][]*message.Message
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{published: map[string][]*message.Message{}}
}

func (p *capturingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.published[topic] = append(p.published[topic], messages...)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func TestPublisherManagerFansOutToAllTopics(t *testing.T) {
	manager := NewPublisherManager()
	chatPublisher := newCapturingPublisher()
	debugPublisher := newCapturingPublisher()
	manager.SubscribePublisher("chat", chatPublisher)
	manager.SubscribePublisher("debug", debugPublisher)

	metadata := EventMetadata{ID: uuid.New()}
	require.NoError(t, manager.Publish(NewStartEvent(metadata)))

	require.Len(t, chatPublisher.published["chat"], 1)
	require.Len(t, debugPublisher.published["debug"], 1)

	// the routed payload re-hydrates into the original event type
	e, err := NewEventFromJson(chatPublisher.published["chat"][0].Payload)
	require.NoError(t, err)
	assert.Equal(t, EventTypeStart, e.Type())
}

func TestPublisherManagerStampsSequenceNumbers(t *testing.T) {
	manager := NewPublisherManager()
	publisher := newCapturingPublisher()
	manager.SubscribePublisher("chat", publisher)

	metadata := EventMetadata{ID: uuid.New()}
	require.NoError(t, manager.Publish(NewPartialCompletionEvent(metadata, "a", "a")))
	require.NoError(t, manager.Publish(NewPartialCompletionEvent(metadata, "b", "ab")))

	msgs := publisher.published["chat"]
	require.Len(t, msgs, 2)
	assert.Equal(t, "0", msgs[0].Metadata.Get("sequence_number"))
	assert.Equal(t, "1", msgs[1].Metadata.Get("sequence_number"))
}
