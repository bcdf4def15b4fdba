package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"walnut-woods/server/internal/world"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), WithFlushInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutIsImmediatelyDurable(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	pos := world.Vec3{X: 1, Y: 2, Z: 3}
	if err := s.Put(PositionKey("token-1"), pos); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Visible on disk without any flush.
	if _, err := os.Stat(filepath.Join(dir, "positions", "token-1.json")); err != nil {
		t.Fatalf("position file missing: %v", err)
	}

	// A second store over the same directory reads it back.
	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	var got world.Vec3
	if err := reopened.Get(PositionKey("token-1"), &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != pos {
		t.Fatalf("read %+v, want %+v", got, pos)
	}
}

func TestBatchedWritesLandOnFlush(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutBatched(MetricsKey("room-1"), map[string]uint64{"ticks": 10}); err != nil {
		t.Fatalf("put batched: %v", err)
	}

	// Queued values are readable before the flush.
	var metrics map[string]uint64
	if err := s.Get(MetricsKey("room-1"), &metrics); err != nil {
		t.Fatalf("get queued: %v", err)
	}
	if metrics["ticks"] != 10 {
		t.Fatalf("queued metrics %v", metrics)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	var flushed map[string]uint64
	if err := s.Get(MetricsKey("room-1"), &flushed); err != nil {
		t.Fatalf("get flushed: %v", err)
	}
	if flushed["ticks"] != 10 {
		t.Fatalf("flushed metrics %v", flushed)
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	var out world.Vec3
	if err := s.Get(PositionKey("nobody"), &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	s := openTestStore(t)
	for _, key := range []string{"", "../escape", "/absolute"} {
		if err := s.Put(key, 1); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put(SeedKey("room-1"), int64(42)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(SeedKey("room-1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(SeedKey("room-1")); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	var out int64
	if err := s.Get(SeedKey("room-1"), &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.PutBatched(WalnutsKey("room-1"), []string{"w1"}); err != nil {
		t.Fatalf("put batched: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var walnuts []string
	if err := reopened.Get(WalnutsKey("room-1"), &walnuts); err != nil {
		t.Fatalf("get after close: %v", err)
	}
	if len(walnuts) != 1 || walnuts[0] != "w1" {
		t.Fatalf("walnuts %v", walnuts)
	}
}
