package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatroom/backend/internal/cache"
	"chatroom/backend/internal/models"
)

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]models.Message
	gets        int
	invalidated []string
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]models.Message)}
}

func (c *fakeCache) Get(_ context.Context, room string, _ int) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	msgs, ok := c.entries[room]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return msgs, nil
}

func (c *fakeCache) Set(_ context.Context, room string, _ int, msgs []models.Message, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[room] = msgs
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, room)
	c.invalidated = append(c.invalidated, room)
	return nil
}

func (c *fakeCache) Close() error { return nil }

type countingStore struct {
	MessageStore
	mu     sync.Mutex
	recent int
}

func (s *countingStore) Recent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	s.recent++
	s.mu.Unlock()
	return s.MessageStore.Recent(ctx, room, limit)
}

func TestCachedStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) MessageStore {
		return NewCachedStore(NewMemoryStore(), newFakeCache(), time.Minute)
	})
}

func TestCachedStoreServesFromCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{MessageStore: NewMemoryStore()}
	fc := newFakeCache()
	s := NewCachedStore(backend, fc, time.Minute)

	if _, err := s.Append(ctx, "general", "alice", "one"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		msgs, err := s.Recent(ctx, "general", 50)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(msgs) != 1 {
			t.Fatalf("Recent() returned %d messages, want 1", len(msgs))
		}
	}
	if backend.recent != 1 {
		t.Errorf("backend Recent called %d times, want 1", backend.recent)
	}

	if _, err := s.Append(ctx, "general", "bob", "two"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(fc.invalidated) != 2 || fc.invalidated[1] != "general" {
		t.Errorf("invalidated = %v, want two invalidations of general", fc.invalidated)
	}

	msgs, err := s.Recent(ctx, "general", 50)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "two" {
		t.Fatalf("Recent() after append = %+v, want the new message last", msgs)
	}
	if backend.recent != 2 {
		t.Errorf("backend Recent called %d times, want 2", backend.recent)
	}
}

func TestCachedStoreFallsBackOnCacheError(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{MessageStore: NewMemoryStore()}
	fc := newFakeCache()
	fc.getErr = errors.New("connection refused")
	s := NewCachedStore(backend, fc, time.Minute)

	if _, err := s.Append(ctx, "general", "alice", "one"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	msgs, err := s.Recent(ctx, "general", 50)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("Recent() returned %d messages, want 1", len(msgs))
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, string, string, string) (models.Message, error) {
	return models.Message{}, ErrStoreFailure
}

func (failingStore) Recent(context.Context, string, int) ([]models.Message, error) {
	return nil, ErrStoreFailure
}

func TestCachedStorePropagatesFailures(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCache()
	s := NewCachedStore(failingStore{}, fc, time.Minute)

	if _, err := s.Append(ctx, "general", "alice", "one"); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("Append() error = %v, want ErrStoreFailure", err)
	}
	if len(fc.invalidated) != 0 {
		t.Errorf("failed append invalidated %v", fc.invalidated)
	}
	if _, err := s.Recent(ctx, "general", 50); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("Recent() error = %v, want ErrStoreFailure", err)
	}
	if len(fc.entries) != 0 {
		t.Error("failed read was cached")
	}
}
