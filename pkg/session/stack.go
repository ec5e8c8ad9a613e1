package session

import (
	"github.com/DannyCKL/PromptAssistant/pkg/conversation"
	"github.com/huandu/go-clone"
)

// Stack is the transient undo stack of chat history snapshots. Each entry is
// a deep copy taken when a user message was committed, so later mutations of
// the live history never leak into older snapshots.
//
// There is no redo branch: pushing after an undo discards the entries above
// the current index.
type Stack struct {
	entries []conversation.Conversation
	index   int
}

func NewStack() *Stack {
	return &Stack{index: -1}
}

// Push records a snapshot of the history and makes it the current position.
func (s *Stack) Push(history conversation.Conversation) {
	snapshot := clone.Clone(history).(conversation.Conversation)
	s.entries = append(s.entries[:s.index+1], snapshot)
	s.index = len(s.entries) - 1
}

// Undo steps back one snapshot and truncates the stack at the new position.
// It reports false at the oldest entry, leaving the stack untouched, so
// undoing at the boundary is idempotent.
func (s *Stack) Undo() (conversation.Conversation, bool) {
	if s.index <= 0 {
		return nil, false
	}
	s.index--
	s.entries = s.entries[:s.index+1]
	return clone.Clone(s.entries[s.index]).(conversation.Conversation), true
}

// Index returns the current position, -1 when the stack is empty.
func (s *Stack) Index() int {
	return s.index
}

func (s *Stack) Len() int {
	return len(s.entries)
}

// Reset drops all snapshots, for when the session switches conversations.
func (s *Stack) Reset() {
	s.entries = nil
	s.index = -1
}
