// Package store persists chat messages per room.
package store

import (
	"context"
	"errors"

	"chatroom/backend/internal/models"
)

// DefaultLimit is the number of messages Recent returns when limit <= 0.
const DefaultLimit = 50

// ErrStoreFailure wraps every error returned by Append or Recent. A failed
// Append leaves nothing written.
var ErrStoreFailure = errors.New("message store failure")

// MessageStore is an append-only message log keyed by room.
type MessageStore interface {
	// Append persists a message and returns it with its id and UTC timestamp.
	Append(ctx context.Context, room, author, content string) (models.Message, error)
	// Recent returns the last limit messages of room, oldest first. A room
	// without history yields an empty slice and no error.
	Recent(ctx context.Context, room string, limit int) ([]models.Message, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
