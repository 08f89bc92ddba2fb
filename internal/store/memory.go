package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatroom/backend/internal/models"
)

const memMaxMessagesPerRoom = 10_000

// MemoryStore keeps messages in process memory. It backs tests and local
// runs without a database.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint64
	rooms  map[string][]models.Message
	now    func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string][]models.Message),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Append implements MessageStore.
func (s *MemoryStore) Append(ctx context.Context, room, author, content string) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg := models.Message{
		ID:        s.nextID,
		Room:      room,
		Author:    author,
		Content:   content,
		CreatedAt: s.now(),
	}
	msgs := append(s.rooms[room], msg)
	if len(msgs) > memMaxMessagesPerRoom {
		msgs = msgs[len(msgs)-memMaxMessagesPerRoom:]
	}
	s.rooms[room] = msgs

	return msg, nil
}

// Recent implements MessageStore.
func (s *MemoryStore) Recent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	limit = normalizeLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.rooms[room]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
