// Package cache holds short-lived copies of recent room history.
package cache

import (
	"context"
	"errors"
	"time"

	"chatroom/backend/internal/models"
)

// ErrCacheMiss is returned by Get when nothing is cached.
var ErrCacheMiss = errors.New("cache miss")

// HistoryCache stores the result of a recent-history read per room and limit.
type HistoryCache interface {
	Get(ctx context.Context, room string, limit int) ([]models.Message, error)
	Set(ctx context.Context, room string, limit int, msgs []models.Message, ttl time.Duration) error
	// Invalidate drops every cached limit for room.
	Invalidate(ctx context.Context, room string) error
	Close() error
}
