package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatroom/backend/internal/cache"
	"chatroom/backend/internal/logger"
	"chatroom/backend/internal/models"

	"golang.org/x/sync/singleflight"
)

// CachedStore serves Recent from a HistoryCache and collapses concurrent
// misses for the same room into one backend read. Append always goes to the
// backend and then invalidates the room.
type CachedStore struct {
	next  MessageStore
	cache cache.HistoryCache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedStore decorates next with cache. Entries expire after ttl even
// when an invalidation is lost.
func NewCachedStore(next MessageStore, c cache.HistoryCache, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, cache: c, ttl: ttl}
}

// Append implements MessageStore.
func (s *CachedStore) Append(ctx context.Context, room, author, content string) (models.Message, error) {
	msg, err := s.next.Append(ctx, room, author, content)
	if err != nil {
		return msg, err
	}
	if err := s.cache.Invalidate(ctx, room); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldRoom, room).Msg("history cache invalidation failed")
	}
	return msg, nil
}

// Recent implements MessageStore.
func (s *CachedStore) Recent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	limit = normalizeLimit(limit)

	msgs, err := s.cache.Get(ctx, room, limit)
	if err == nil {
		return msgs, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldRoom, room).Msg("history cache read failed")
	}

	key := fmt.Sprintf("%s\x00%d", room, limit)
	v, err, _ := s.group.Do(key, func() (any, error) {
		msgs, err := s.next.Recent(ctx, room, limit)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, room, limit, msgs, s.ttl); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldRoom, room).Msg("history cache write failed")
		}
		return msgs, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing a flight must not alias one slice.
	shared := v.([]models.Message)
	out := make([]models.Message, len(shared))
	copy(out, shared)
	return out, nil
}
