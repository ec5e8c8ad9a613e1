package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type recordingHandler struct {
	calls []string
	fail  error
}

func (h *recordingHandler) HandleThinkingPartial(ctx context.Context, e *EventThinkingPartial) error {
	h.calls = append(h.calls, "thinking:"+e.Delta)
	return h.fail
}

func (h *recordingHandler) HandlePartialCompletion(ctx context.Context, e *EventPartialCompletion) error {
	h.calls = append(h.calls, "partial:"+e.Delta)
	return h.fail
}

func (h *recordingHandler) HandleFinal(ctx context.Context, e *EventFinal) error {
	h.calls = append(h.calls, "final:"+e.Text)
	return h.fail
}

func (h *recordingHandler) HandleError(ctx context.Context, e *EventError) error {
	h.calls = append(h.calls, "error:"+e.ErrorString)
	return h.fail
}

func (h *recordingHandler) HandleInterrupt(ctx context.Context, e *EventInterrupt) error {
	h.calls = append(h.calls, "interrupt:"+e.Text)
	return h.fail
}

var _ ChatEventHandler = (*recordingHandler)(nil)

func TestChatDispatchHandlerRoutesEvents(t *testing.T) {
	handler := &recordingHandler{}
	dispatch := NewChatDispatchHandler(handler)

	metadata := EventMetadata{ID: uuid.New()}
	evs := []Event{
		NewStartEvent(metadata),
		NewThinkingPartialEvent(metadata, "hmm", "hmm"),
		NewPartialCompletionEvent(metadata, "Hello", "Hello"),
		NewFinalEvent(metadata, "Hello there.", "hmm"),
		NewErrorEvent(metadata, errors.New("boom")),
		NewInterruptEvent(metadata, "Hel", ""),
	}
	for _, e := range evs {
		require.NoError(t, dispatch(toMessage(t, e)))
	}

	// start events need no rendering and never reach the handler
	assert.Equal(t, []string{
		"thinking:hmm",
		"partial:Hello",
		"final:Hello there.",
		"error:boom",
		"interrupt:Hel",
	}, handler.calls)
}

func TestChatDispatchHandlerSkipsMalformedPayloads(t *testing.T) {
	handler := &recordingHandler{}
	dispatch := NewChatDispatchHandler(handler)

	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	assert.NoError(t, dispatch(msg))
	assert.Empty(t, handler.calls)
}

func TestChatDispatchHandlerPropagatesHandlerErrors(t *testing.T) {
	handler := &recordingHandler{fail: errors.New("render failed")}
	dispatch := NewChatDispatchHandler(handler)

	ev := NewFinalEvent(EventMetadata{ID: uuid.New()}, "text", "")
	err := dispatch(toMessage(t, ev))
	assert.ErrorContains(t, err, "render failed")
}
