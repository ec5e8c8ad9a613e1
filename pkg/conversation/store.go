package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrStoreClosed    = errors.New("conversation store closed")
	ErrRecordNotFound = errors.New("conversation not found")
)

// RecordNotFoundError reports operations against an unknown conversation id.
type RecordNotFoundError struct {
	ID string
}

func (e *RecordNotFoundError) Error() string {
	if e == nil {
		return ErrRecordNotFound.Error()
	}
	return fmt.Sprintf("conversation %q not found", e.ID)
}

func (e *RecordNotFoundError) Is(target error) bool { return target == ErrRecordNotFound }

// DefaultTitle is given to conversations created without an explicit title.
const DefaultTitle = "New Conversation"

// Record is one persisted conversation: its message log plus bookkeeping.
type Record struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Messages  Conversation `json:"messages"`
	Likes     int          `json:"likes"`
	Dislikes  int          `json:"dislikes"`
}

// Store is a keyed store of conversation records. Mutating operations persist
// synchronously before returning.
//
// Append, UpdateLast and RemoveLast report a boolean instead of an error for
// the unknown-id and no-message cases so callers can treat them as soft
// failures (the original conversation log keeps running either way).
type Store interface {
	// Create allocates a new record. An empty title gets DefaultTitle.
	Create(ctx context.Context, title string) (*Record, error)

	// Append adds a message to the record's log. It reports false when the id
	// is unknown or the content is whitespace-only. An exact duplicate of the
	// last stored message is a no-op that still reports true.
	Append(ctx context.Context, id string, role Role, content string) (bool, error)

	// UpdateLast replaces the content of the most recent message. False when
	// the record is unknown or holds no messages.
	UpdateLast(ctx context.Context, id string, content string) (bool, error)

	// RemoveLast drops the most recent message. False when the record is
	// unknown or holds no messages.
	RemoveLast(ctx context.Context, id string) (bool, error)

	Like(ctx context.Context, id string) error
	Dislike(ctx context.Context, id string) error

	Rename(ctx context.Context, id string, title string) error
	Delete(ctx context.Context, id string) error

	// Get returns a deep copy of the record.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns deep copies of all records, ordered by UpdatedAt descending.
	List(ctx context.Context) ([]*Record, error)

	Close() error
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Messages = make(Conversation, len(r.Messages))
	for i, msg := range r.Messages {
		m := *msg
		clone.Messages[i] = &m
	}
	return &clone
}
