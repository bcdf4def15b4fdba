// Package store persists room state as JSON documents under a state
// directory. Writes land via temp-file + rename so a crash never leaves
// a half-written document. Player positions are written through
// immediately; everything else may be batched on a short flush timer.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNotFound reports a key with no stored document.
var ErrNotFound = errors.New("store: key not found")

// Logical key layout.
func PositionKey(identity string) string { return "positions/" + identity }
func SeedKey(roomID string) string       { return "rooms/" + roomID + "/seed" }
func ObjectsKey(roomID string) string    { return "rooms/" + roomID + "/objects" }
func WalnutsKey(roomID string) string    { return "rooms/" + roomID + "/walnuts" }
func MetricsKey(roomID string) string    { return "rooms/" + roomID + "/metrics" }
func LeaderboardKey() string             { return "leaderboard/scores" }

// Store is safe for concurrent use.
type Store struct {
	dir           string
	flushInterval time.Duration

	mu      sync.Mutex
	pending map[string][]byte
	timer   *time.Timer
	closed  bool
	lastErr error
}

// Option tweaks store construction.
type Option func(*Store)

// WithFlushInterval overrides the batch flush cadence.
func WithFlushInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.flushInterval = interval
		}
	}
}

// Open creates the state directory if needed and returns a store.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: state directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	s := &Store{
		dir:           dir,
		flushInterval: 2 * time.Second,
		pending:       make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Put writes a document durably before returning. Use for state whose
// loss is user-visible, like player positions.
func (s *Store) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// PutBatched queues a document for the next flush. Later writes to the
// same key replace earlier queued ones.
func (s *Store) PutBatched(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	if _, err := s.path(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store: closed")
	}
	s.pending[key] = data
	if s.timer == nil {
		s.timer = time.AfterFunc(s.flushInterval, func() {
			if err := s.Flush(); err != nil {
				s.noteErr(err)
			}
		})
	}
	return nil
}

// Get unmarshals the document at key into out.
func (s *Store) Get(key string, out any) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	data, queued := s.pending[key]
	s.mu.Unlock()

	if !queued {
		data, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return fmt.Errorf("store: read %s: %w", key, err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("store: unmarshal %s: %w", key, err)
	}
	return nil
}

// Delete removes a document. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// Flush writes every queued document. The first failure is returned but
// the remaining documents are still attempted; a storage failure is
// never fatal to the room.
func (s *Store) Flush() error {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string][]byte)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	var firstErr error
	for key, data := range batch {
		path, err := s.path(key)
		if err == nil {
			err = writeAtomic(path, data)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LastError returns and clears the most recent background flush error.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.lastErr
	s.lastErr = nil
	return err
}

func (s *Store) noteErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Close flushes pending writes and stops the timer.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Flush()
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("store: invalid key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)+".json"), nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: replace %s: %w", path, err)
	}
	return nil
}
