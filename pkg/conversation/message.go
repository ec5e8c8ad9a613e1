package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is a single entry in a conversation log.
type Message struct {
	ID      uuid.UUID `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"timestamp"`
}

type MessageOption func(*Message)

func WithID(id uuid.UUID) MessageOption {
	return func(message *Message) {
		message.ID = id
	}
}

func NewMessage(role Role, content string, options ...MessageOption) *Message {
	ret := &Message{
		ID:      uuid.New(),
		Role:    role,
		Content: content,
		Time:    time.Now(),
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func (m *Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

type Conversation []*Message

// LastUserIndex returns the index of the most recent user message, scanning
// backward from the end. Returns -1 when the conversation holds none.
func (messages Conversation) LastUserIndex() int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// Turn is one user message together with its assistant reply.
type Turn struct {
	User      *Message
	Assistant *Message
}

// PairedTurns rebuilds the user/assistant turn structure from a flat message
// log. It assumes strict alternation: a user message directly followed by an
// assistant message forms a turn, anything unpaired is skipped silently.
func (messages Conversation) PairedTurns() []Turn {
	turns := []Turn{}
	i := 0
	for i < len(messages)-1 {
		if messages[i].Role == RoleUser && messages[i+1].Role == RoleAssistant {
			turns = append(turns, Turn{User: messages[i], Assistant: messages[i+1]})
			i += 2
			continue
		}
		i++
	}
	return turns
}
