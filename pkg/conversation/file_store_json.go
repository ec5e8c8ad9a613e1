package conversation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// JSONFileStore persists conversation records as a single JSON index on disk.
// Every mutation rewrites the whole index through a temp file and rename, so a
// reader never observes a torn write. It is safe for concurrent use within one
// process; concurrent writers from multiple processes are not supported.
type JSONFileStore struct {
	mu      sync.RWMutex
	path    string
	records map[string]*Record
	closed  bool
}

var _ Store = (*JSONFileStore)(nil)

func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("conversation store path is required")
	}

	s := &JSONFileStore{
		path:    path,
		records: map[string]*Record{},
	}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONFileStore) Create(ctx context.Context, title string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	if title == "" {
		title = DefaultTitle
	}

	now := time.Now()
	record := &Record{
		ID:        s.nextIDLocked(now),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  Conversation{},
	}
	s.records[record.ID] = record

	if err := s.persistLocked(); err != nil {
		delete(s.records, record.ID)
		return nil, err
	}
	return record.Clone(), nil
}

func (s *JSONFileStore) Append(ctx context.Context, id string, role Role, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return false, err
	}

	record, ok := s.records[id]
	if !ok {
		return false, nil
	}
	if strings.TrimSpace(content) == "" {
		return false, nil
	}

	// An append that exactly repeats the last stored message is a no-op that
	// still counts as success.
	if len(record.Messages) > 0 {
		last := record.Messages[len(record.Messages)-1]
		if last.Role == role && last.Content == content {
			return true, nil
		}
	}

	record.Messages = append(record.Messages, NewMessage(role, content))
	record.UpdatedAt = time.Now()

	if err := s.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONFileStore) UpdateLast(ctx context.Context, id string, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return false, err
	}

	record, ok := s.records[id]
	if !ok || len(record.Messages) == 0 {
		return false, nil
	}

	record.Messages[len(record.Messages)-1].Content = content
	record.UpdatedAt = time.Now()

	if err := s.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONFileStore) RemoveLast(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return false, err
	}

	record, ok := s.records[id]
	if !ok || len(record.Messages) == 0 {
		return false, nil
	}

	record.Messages = record.Messages[:len(record.Messages)-1]
	record.UpdatedAt = time.Now()

	if err := s.persistLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONFileStore) Like(ctx context.Context, id string) error {
	return s.bump(id, func(record *Record) { record.Likes++ })
}

func (s *JSONFileStore) Dislike(ctx context.Context, id string) error {
	return s.bump(id, func(record *Record) { record.Dislikes++ })
}

func (s *JSONFileStore) Rename(ctx context.Context, id string, title string) error {
	return s.bump(id, func(record *Record) { record.Title = title })
}

func (s *JSONFileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if _, ok := s.records[id]; !ok {
		return &RecordNotFoundError{ID: id}
	}
	delete(s.records, id)
	return s.persistLocked()
}

func (s *JSONFileStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	record, ok := s.records[id]
	if !ok {
		return nil, &RecordNotFoundError{ID: id}
	}
	return record.Clone(), nil
}

func (s *JSONFileStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	ret := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		ret = append(ret, record.Clone())
	}
	sort.SliceStable(ret, func(i, j int) bool {
		if ret[i].UpdatedAt.Equal(ret[j].UpdatedAt) {
			return ret[i].ID > ret[j].ID
		}
		return ret[i].UpdatedAt.After(ret[j].UpdatedAt)
	})
	return ret, nil
}

func (s *JSONFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *JSONFileStore) bump(id string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	record, ok := s.records[id]
	if !ok {
		return &RecordNotFoundError{ID: id}
	}
	mutate(record)
	record.UpdatedAt = time.Now()
	return s.persistLocked()
}

// nextIDLocked derives an id from the current wall-clock second, the way the
// index has always been keyed. Creations within the same second get a numeric
// suffix instead of colliding.
func (s *JSONFileStore) nextIDLocked(now time.Time) string {
	base := strconv.FormatInt(now.Unix(), 10)
	if _, ok := s.records[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, ok := s.records[candidate]; !ok {
			return candidate
		}
	}
}

func (s *JSONFileStore) loadFromDisk() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "could not read conversation index")
	}

	records := map[string]*Record{}
	if err := json.Unmarshal(b, &records); err != nil {
		return errors.Wrapf(err, "could not parse conversation index %s", s.path)
	}

	for id, record := range records {
		if record == nil {
			delete(records, id)
			continue
		}
		if record.ID == "" {
			record.ID = id
		}
		if record.Messages == nil {
			record.Messages = Conversation{}
		}
	}
	s.records = records
	return nil
}

func (s *JSONFileStore) persistLocked() error {
	b, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode conversation index")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *JSONFileStore) ensureOpen() error {
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
