package session

import (
	"context"
	"strings"

	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/DannyCKL/PromptAssistant/pkg/inference"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session sequences full turns (send / retry / edit) against one active
// conversation and keeps the transient history stack aligned with the store.
//
// A session owns exactly one active conversation id. It is not safe for
// concurrent use; callers run one turn at a time.
type Session struct {
	store  conversation.Store
	engine inference.Engine
	titles *conversation.TitleGenerator

	systemPrompt string

	activeID string
	history  conversation.Conversation
	stack    *Stack
}

type Option func(*Session)

// WithTitleGenerator enables automatic title generation after completed
// turns.
func WithTitleGenerator(titles *conversation.TitleGenerator) Option {
	return func(s *Session) {
		s.titles = titles
	}
}

// WithSystemPrompt sets the system prompt prepended to every request.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		s.systemPrompt = prompt
	}
}

func NewSession(store conversation.Store, engine inference.Engine, options ...Option) *Session {
	ret := &Session{
		store:  store,
		engine: engine,
		stack:  NewStack(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// ActiveID returns the id of the active conversation, empty when none has
// been selected or created yet.
func (s *Session) ActiveID() string {
	return s.activeID
}

// History returns the visible chat history. After an undo this can lag
// behind what the store holds.
func (s *Session) History() conversation.Conversation {
	ret := make(conversation.Conversation, len(s.history))
	copy(ret, s.history)
	return ret
}

// SetSystemPrompt swaps the system prompt used for subsequent turns.
func (s *Session) SetSystemPrompt(prompt string) {
	s.systemPrompt = prompt
}

// SetEngine swaps the inference engine used for subsequent turns.
func (s *Session) SetEngine(engine inference.Engine) {
	s.engine = engine
}

// SetTitleGenerator swaps the title generator, nil disables automatic
// titles.
func (s *Session) SetTitleGenerator(titles *conversation.TitleGenerator) {
	s.titles = titles
}

// New creates a fresh conversation and makes it active.
func (s *Session) New(ctx context.Context) (*conversation.Record, error) {
	record, err := s.store.Create(ctx, "")
	if err != nil {
		return nil, err
	}
	s.setActive(record)
	return record, nil
}

// Select makes an existing conversation active and loads its history.
func (s *Session) Select(ctx context.Context, id string) (*conversation.Record, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.setActive(record)
	return record, nil
}

func (s *Session) setActive(record *conversation.Record) {
	s.activeID = record.ID
	s.history = make(conversation.Conversation, len(record.Messages))
	copy(s.history, record.Messages)
	s.stack.Reset()
}

// Send runs one full turn: append the user message, snapshot the history,
// run inference, persist the reply. Sending empty input is a no-op returning
// the unchanged history.
func (s *Session) Send(ctx context.Context, content string) (conversation.Conversation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return s.History(), nil
	}

	if err := s.ensureActive(ctx); err != nil {
		return nil, err
	}

	if _, err := s.store.Append(ctx, s.activeID, conversation.RoleUser, content); err != nil {
		return nil, errors.Wrap(err, "could not append user message")
	}
	s.history = append(s.history, conversation.NewMessage(conversation.RoleUser, content))
	s.stack.Push(s.history)

	return s.completeTurn(ctx, content)
}

// Retry re-runs the most recent user message. A trailing assistant reply is
// removed from both the visible history and the store first; the user
// message is not duplicated. A no-op when there is no prior user message.
func (s *Session) Retry(ctx context.Context) (conversation.Conversation, error) {
	if s.activeID == "" || len(s.history) == 0 {
		return s.History(), nil
	}
	idx := s.history.LastUserIndex()
	if idx < 0 {
		return s.History(), nil
	}
	content := s.history[idx].Content

	if err := s.dropTrailingAssistant(ctx); err != nil {
		return nil, err
	}

	return s.completeTurn(ctx, content)
}

// Edit overwrites the most recent user message with new content, removes any
// trailing assistant reply, and then proceeds exactly like Retry with the
// edited content.
func (s *Session) Edit(ctx context.Context, content string) (conversation.Conversation, error) {
	content = strings.TrimSpace(content)
	if content == "" || s.activeID == "" || len(s.history) == 0 {
		return s.History(), nil
	}
	if s.history.LastUserIndex() < 0 {
		return s.History(), nil
	}

	if err := s.dropTrailingAssistant(ctx); err != nil {
		return nil, err
	}

	idx := s.history.LastUserIndex()
	if idx < 0 {
		return s.History(), nil
	}
	s.history[idx] = conversation.NewMessage(conversation.RoleUser, content)
	if idx == len(s.history)-1 {
		if _, err := s.store.UpdateLast(ctx, s.activeID, content); err != nil {
			return nil, errors.Wrap(err, "could not update user message")
		}
	}

	return s.completeTurn(ctx, content)
}

// Undo steps the visible history back to the previous snapshot. It touches
// neither the network nor the store, and is a no-op at the oldest entry.
func (s *Session) Undo() conversation.Conversation {
	if snapshot, ok := s.stack.Undo(); ok {
		s.history = snapshot
	}
	return s.History()
}

// Like upvotes the active conversation, a no-op when none is active.
func (s *Session) Like(ctx context.Context) error {
	if s.activeID == "" {
		return nil
	}
	return s.store.Like(ctx, s.activeID)
}

// Dislike downvotes the active conversation, a no-op when none is active.
func (s *Session) Dislike(ctx context.Context) error {
	if s.activeID == "" {
		return nil
	}
	return s.store.Dislike(ctx, s.activeID)
}

// Rename retitles the active conversation. A no-op when no conversation is
// active or the title is empty.
func (s *Session) Rename(ctx context.Context, title string) error {
	if s.activeID == "" || title == "" {
		return nil
	}
	return s.store.Rename(ctx, s.activeID, title)
}

// DeleteConversation removes a conversation. Deleting the active one
// immediately creates and activates a replacement so the session is never
// without an active conversation; the replacement record is returned in that
// case.
func (s *Session) DeleteConversation(ctx context.Context, id string) (*conversation.Record, error) {
	if id == "" {
		id = s.activeID
	}
	if id == "" {
		return nil, nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	if id == s.activeID {
		return s.New(ctx)
	}
	return nil, nil
}

func (s *Session) ensureActive(ctx context.Context) error {
	if s.activeID != "" {
		if _, err := s.store.Get(ctx, s.activeID); err == nil {
			return nil
		}
		log.Debug().Str("conversation_id", s.activeID).Msg("active conversation vanished, creating a new one")
	}
	_, err := s.New(ctx)
	return err
}

func (s *Session) dropTrailingAssistant(ctx context.Context) error {
	if len(s.history) == 0 {
		return nil
	}
	if s.history[len(s.history)-1].Role != conversation.RoleAssistant {
		return nil
	}
	s.history = s.history[:len(s.history)-1]
	if _, err := s.store.RemoveLast(ctx, s.activeID); err != nil {
		return errors.Wrap(err, "could not remove assistant message")
	}
	return nil
}

// completeTurn runs inference over the current history and persists the
// outcome. Request failures are materialized as the assistant's turn content
// instead of being returned, so the conversation log always records what
// happened.
func (s *Session) completeTurn(ctx context.Context, content string) (conversation.Conversation, error) {
	messages := s.buildRequest(content)

	reply, err := s.engine.RunInference(ctx, messages)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return s.History(), err
		}

		errText := err.Error()
		log.Debug().Str("conversation_id", s.activeID).Msg("persisting failed turn as assistant message")
		if _, appendErr := s.store.Append(ctx, s.activeID, conversation.RoleAssistant, errText); appendErr != nil {
			log.Warn().Err(appendErr).Msg("could not persist error message")
		}
		s.history = append(s.history, conversation.NewMessage(conversation.RoleAssistant, errText))
		return s.History(), nil
	}

	if reply != nil && reply.Content != "" {
		if _, err := s.store.Append(ctx, s.activeID, conversation.RoleAssistant, reply.Content); err != nil {
			return nil, errors.Wrap(err, "could not append assistant message")
		}
		s.history = append(s.history, reply)

		if s.titles != nil {
			s.titles.Generate(ctx, s.activeID)
		}
	}

	return s.History(), nil
}

// buildRequest assembles the request conversation: system prompt, prior
// paired turns, then the current user message. Unpaired entries are skipped.
func (s *Session) buildRequest(content string) conversation.Conversation {
	messages := conversation.Conversation{}
	if s.systemPrompt != "" {
		messages = append(messages, conversation.NewMessage(conversation.RoleSystem, s.systemPrompt))
	}

	prior := s.history
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}
	for _, turn := range prior.PairedTurns() {
		messages = append(messages, conversation.NewMessage(conversation.RoleUser, turn.User.Content))
		messages = append(messages, conversation.NewMessage(conversation.RoleAssistant, turn.Assistant.Content))
	}

	messages = append(messages, conversation.NewMessage(conversation.RoleUser, content))
	return messages
}
