package events

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsSurviveRouting(t *testing.T) {
	metadata := EventMetadata{ID: uuid.New(), ConversationID: "1700000000"}

	partial := NewPartialCompletionEvent(metadata, "world", "hello world")
	b, err := json.Marshal(partial)
	require.NoError(t, err)

	e, err := NewEventFromJson(b)
	require.NoError(t, err)
	typed, ok := e.(*EventPartialCompletion)
	require.True(t, ok)
	assert.Equal(t, "world", typed.Delta)
	assert.Equal(t, "hello world", typed.Completion)
	assert.Equal(t, metadata.ID, typed.Metadata().ID)
	assert.Equal(t, "1700000000", typed.Metadata().ConversationID)

	thinking := NewThinkingPartialEvent(metadata, "hmm", "hmm")
	b, err = json.Marshal(thinking)
	require.NoError(t, err)
	e, err = NewEventFromJson(b)
	require.NoError(t, err)
	_, ok = e.(*EventThinkingPartial)
	assert.True(t, ok)

	final := NewFinalEvent(metadata, "hello world", "reasoned about greetings")
	b, err = json.Marshal(final)
	require.NoError(t, err)
	e, err = NewEventFromJson(b)
	require.NoError(t, err)
	typedFinal, ok := e.(*EventFinal)
	require.True(t, ok)
	assert.Equal(t, "hello world", typedFinal.Text)
	assert.Equal(t, "reasoned about greetings", typedFinal.Reasoning)

	errorEvent := NewErrorEvent(metadata, errors.New("upstream hiccup"))
	b, err = json.Marshal(errorEvent)
	require.NoError(t, err)
	e, err = NewEventFromJson(b)
	require.NoError(t, err)
	typedError, ok := e.(*EventError)
	require.True(t, ok)
	assert.Equal(t, "upstream hiccup", typedError.ErrorString)
}

func TestNewEventFromJsonRejectsGarbage(t *testing.T) {
	_, err := NewEventFromJson([]byte("not json"))
	assert.Error(t, err)
}

func toMessage(t *testing.T, e Event) *message.Message {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), b)
}

func TestStepPrinterRendersStreamedTurn(t *testing.T) {
	metadata := EventMetadata{ID: uuid.New()}
	var buf bytes.Buffer
	printer := StepPrinterFunc("", &buf)

	sequence := []Event{
		NewStartEvent(metadata),
		NewThinkingPartialEvent(metadata, "considering", "considering"),
		NewThinkingPartialEvent(metadata, " options", "considering options"),
		NewPartialCompletionEvent(metadata, "Hello", "Hello"),
		NewPartialCompletionEvent(metadata, " there.", "Hello there."),
		NewFinalEvent(metadata, "Hello there.", "considering options"),
	}
	for _, e := range sequence {
		require.NoError(t, printer(toMessage(t, e)))
	}

	out := buf.String()
	assert.Contains(t, out, "--- Thinking ---")
	assert.Contains(t, out, "considering options")
	assert.Contains(t, out, "--- Reply ---")
	assert.Contains(t, out, "Hello there.")
	// exactly one copy of the reply: deltas printed it, the final only closes the line
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte("Hello there.")))
}

func TestStepPrinterRendersBlockingTurn(t *testing.T) {
	metadata := EventMetadata{ID: uuid.New()}
	var buf bytes.Buffer
	printer := StepPrinterFunc("", &buf)

	require.NoError(t, printer(toMessage(t, NewStartEvent(metadata))))
	require.NoError(t, printer(toMessage(t, NewFinalEvent(metadata, "Full reply, no streaming.", ""))))

	assert.Contains(t, buf.String(), "Full reply, no streaming.")
}

func TestStepPrinterRendersErrors(t *testing.T) {
	metadata := EventMetadata{ID: uuid.New()}
	var buf bytes.Buffer
	printer := StepPrinterFunc("", &buf)

	require.NoError(t, printer(toMessage(t, NewErrorEvent(metadata, errors.New("boom")))))
	assert.Contains(t, buf.String(), "error: boom")
}
