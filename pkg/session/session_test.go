package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
)

// fakeEngine replays scripted replies and errors, recording every request it
// was handed.
type fakeEngine struct {
	replies  []string
	errs     []error
	calls    int
	requests []conversation.Conversation
}

func (e *fakeEngine) RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	e.requests = append(e.requests, messages)
	i := e.calls
	e.calls++
	if i < len(e.errs) && e.errs[i] != nil {
		return nil, e.errs[i]
	}
	reply := "scripted reply"
	if i < len(e.replies) {
		reply = e.replies[i]
	}
	return conversation.NewMessage(conversation.RoleAssistant, reply), nil
}

type fakeTitleModel struct {
	title string
	calls int
}

func (m *fakeTitleModel) Complete(ctx context.Context, messages conversation.Conversation) (string, error) {
	m.calls++
	return m.title, nil
}

func newTestSession(t *testing.T, engine *fakeEngine, options ...Option) (*Session, conversation.Store) {
	t.Helper()
	store, err := conversation.NewJSONFileStore(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)
	return NewSession(store, engine, options...), store
}

func storedMessages(t *testing.T, store conversation.Store, id string) conversation.Conversation {
	t.Helper()
	record, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	return record.Messages
}

func TestSendCreatesConversationOnDemand(t *testing.T) {
	engine := &fakeEngine{replies: []string{"hi there"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	assert.Equal(t, "", sess.ActiveID())

	history, err := sess.Send(ctx, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ActiveID())

	require.Len(t, history, 2)
	assert.Equal(t, conversation.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, conversation.RoleAssistant, history[1].Role)
	assert.Equal(t, "hi there", history[1].Content)

	stored := storedMessages(t, store, sess.ActiveID())
	require.Len(t, stored, 2)
	assert.Equal(t, "hello", stored[0].Content)
	assert.Equal(t, "hi there", stored[1].Content)
}

func TestSendEmptyInputIsANoOp(t *testing.T) {
	engine := &fakeEngine{}
	sess, _ := newTestSession(t, engine)
	ctx := context.Background()

	for _, content := range []string{"", "   ", "\t\n"} {
		history, err := sess.Send(ctx, content)
		require.NoError(t, err)
		assert.Empty(t, history)
	}
	assert.Equal(t, 0, engine.calls)
	assert.Equal(t, "", sess.ActiveID())
}

func TestSendIncludesSystemPromptAndPriorTurns(t *testing.T) {
	engine := &fakeEngine{replies: []string{"four", "six"}}
	sess, _ := newTestSession(t, engine, WithSystemPrompt("You are a calculator."))
	ctx := context.Background()

	_, err := sess.Send(ctx, "2+2?")
	require.NoError(t, err)
	_, err = sess.Send(ctx, "3+3?")
	require.NoError(t, err)

	require.Len(t, engine.requests, 2)

	first := engine.requests[0]
	require.Len(t, first, 2)
	assert.Equal(t, conversation.RoleSystem, first[0].Role)
	assert.Equal(t, "You are a calculator.", first[0].Content)
	assert.Equal(t, "2+2?", first[1].Content)

	second := engine.requests[1]
	require.Len(t, second, 4)
	assert.Equal(t, conversation.RoleSystem, second[0].Role)
	assert.Equal(t, "2+2?", second[1].Content)
	assert.Equal(t, "four", second[2].Content)
	assert.Equal(t, "3+3?", second[3].Content)
}

func TestRetryRemovesExactlyOneAssistantReply(t *testing.T) {
	engine := &fakeEngine{replies: []string{"first answer", "second answer"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "question")
	require.NoError(t, err)

	history, err := sess.Retry(ctx)
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "question", history[0].Content)
	assert.Equal(t, "second answer", history[1].Content)

	stored := storedMessages(t, store, sess.ActiveID())
	require.Len(t, stored, 2)
	assert.Equal(t, "question", stored[0].Content)
	assert.Equal(t, "second answer", stored[1].Content)

	// the retried request must not duplicate the user message
	require.Len(t, engine.requests, 2)
	retryRequest := engine.requests[1]
	userCount := 0
	for _, msg := range retryRequest {
		if msg.Role == conversation.RoleUser {
			userCount++
		}
	}
	assert.Equal(t, 1, userCount)
}

func TestRetryWithoutHistoryIsANoOp(t *testing.T) {
	engine := &fakeEngine{}
	sess, _ := newTestSession(t, engine)

	history, err := sess.Retry(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, 0, engine.calls)
}

func TestRetryAfterInterruptedTurn(t *testing.T) {
	engine := &fakeEngine{errs: []error{context.Canceled}, replies: []string{"", "recovered"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "question")
	require.Error(t, err)

	// the interrupted turn left a trailing user message and no reply
	stored := storedMessages(t, store, sess.ActiveID())
	require.Len(t, stored, 1)
	assert.Equal(t, conversation.RoleUser, stored[0].Role)

	history, err := sess.Retry(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "recovered", history[1].Content)

	stored = storedMessages(t, store, sess.ActiveID())
	assert.Len(t, stored, 2)
}

func TestEditOverwritesLastUserMessage(t *testing.T) {
	engine := &fakeEngine{replies: []string{"about cats", "about dogs"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "tell me about cats")
	require.NoError(t, err)

	history, err := sess.Edit(ctx, "tell me about dogs")
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "tell me about dogs", history[0].Content)
	assert.Equal(t, "about dogs", history[1].Content)

	stored := storedMessages(t, store, sess.ActiveID())
	require.Len(t, stored, 2)
	assert.Equal(t, "tell me about dogs", stored[0].Content)
	assert.Equal(t, "about dogs", stored[1].Content)

	// the edited request carries the new content, not the old
	editedRequest := engine.requests[1]
	assert.Equal(t, "tell me about dogs", editedRequest[len(editedRequest)-1].Content)
}

func TestEditWithEmptyContentIsANoOp(t *testing.T) {
	engine := &fakeEngine{replies: []string{"answer"}}
	sess, _ := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "question")
	require.NoError(t, err)

	history, err := sess.Edit(ctx, "   ")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "question", history[0].Content)
	assert.Equal(t, 1, engine.calls)
}

func TestUndoStepsBackWithoutTouchingTheStore(t *testing.T) {
	engine := &fakeEngine{replies: []string{"one", "two"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "first")
	require.NoError(t, err)
	_, err = sess.Send(ctx, "second")
	require.NoError(t, err)

	require.Len(t, sess.History(), 4)

	history := sess.Undo()
	require.Len(t, history, 1)
	assert.Equal(t, "first", history[0].Content)

	// undoing past the oldest snapshot changes nothing
	history = sess.Undo()
	require.Len(t, history, 1)
	history = sess.Undo()
	require.Len(t, history, 1)

	// the store never participates in undo
	stored := storedMessages(t, store, sess.ActiveID())
	assert.Len(t, stored, 4)
}

func TestUndoOnFreshSessionIsANoOp(t *testing.T) {
	engine := &fakeEngine{}
	sess, _ := newTestSession(t, engine)

	assert.Empty(t, sess.Undo())
	assert.Empty(t, sess.Undo())
}

func TestLikeAndDislikeWithoutActiveConversation(t *testing.T) {
	engine := &fakeEngine{}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	require.NoError(t, sess.Like(ctx))
	require.NoError(t, sess.Dislike(ctx))

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLikeBumpsActiveConversation(t *testing.T) {
	engine := &fakeEngine{replies: []string{"answer"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "question")
	require.NoError(t, err)

	require.NoError(t, sess.Like(ctx))
	record, err := store.Get(ctx, sess.ActiveID())
	require.NoError(t, err)
	assert.Equal(t, 1, record.Likes)
}

func TestDeleteActiveConversationCreatesReplacement(t *testing.T) {
	engine := &fakeEngine{replies: []string{"answer"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "question")
	require.NoError(t, err)
	oldID := sess.ActiveID()

	replacement, err := sess.DeleteConversation(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, replacement)
	assert.NotEqual(t, oldID, replacement.ID)
	assert.Equal(t, replacement.ID, sess.ActiveID())
	assert.Empty(t, sess.History())

	_, err = store.Get(ctx, oldID)
	assert.ErrorIs(t, err, conversation.ErrRecordNotFound)
	_, err = store.Get(ctx, replacement.ID)
	assert.NoError(t, err)
}

func TestDeleteOtherConversationKeepsActive(t *testing.T) {
	engine := &fakeEngine{replies: []string{"answer"}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	other, err := store.Create(ctx, "other")
	require.NoError(t, err)

	_, err = sess.Send(ctx, "question")
	require.NoError(t, err)
	activeID := sess.ActiveID()

	replacement, err := sess.DeleteConversation(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, replacement)
	assert.Equal(t, activeID, sess.ActiveID())
	assert.Len(t, sess.History(), 2)
}

func TestFailedTurnBecomesAssistantMessage(t *testing.T) {
	engine := &fakeEngine{errs: []error{errors.New("request failed after 3 attempts: connection refused")}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	history, err := sess.Send(ctx, "question")
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, conversation.RoleAssistant, history[1].Role)
	assert.Contains(t, history[1].Content, "request failed after 3 attempts")

	stored := storedMessages(t, store, sess.ActiveID())
	require.Len(t, stored, 2)
	assert.Contains(t, stored[1].Content, "request failed after 3 attempts")
}

func TestCancellationPropagatesWithoutPersisting(t *testing.T) {
	engine := &fakeEngine{errs: []error{context.Canceled}}
	sess, store := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "question")
	assert.ErrorIs(t, err, context.Canceled)

	stored := storedMessages(t, store, sess.ActiveID())
	require.Len(t, stored, 1)
	assert.Equal(t, conversation.RoleUser, stored[0].Role)
}

func TestTitleGeneratedAfterFirstExchange(t *testing.T) {
	engine := &fakeEngine{replies: []string{"an answer"}}
	store, err := conversation.NewJSONFileStore(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)

	model := &fakeTitleModel{title: "Quick question"}
	sess := NewSession(store, engine,
		WithTitleGenerator(conversation.NewTitleGenerator(store, model)))
	ctx := context.Background()

	_, err = sess.Send(ctx, "a question")
	require.NoError(t, err)

	record, err := store.Get(ctx, sess.ActiveID())
	require.NoError(t, err)
	assert.Equal(t, "Quick question", record.Title)
	assert.Equal(t, 1, model.calls)
}

func TestSelectLoadsExistingHistory(t *testing.T) {
	engine := &fakeEngine{replies: []string{"answer"}}
	sess, _ := newTestSession(t, engine)
	ctx := context.Background()

	_, err := sess.Send(ctx, "question")
	require.NoError(t, err)
	firstID := sess.ActiveID()

	_, err = sess.New(ctx)
	require.NoError(t, err)
	assert.Empty(t, sess.History())

	record, err := sess.Select(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, firstID, record.ID)
	assert.Len(t, sess.History(), 2)

	// switching conversations clears the undo stack
	assert.Len(t, sess.Undo(), 2)
}
