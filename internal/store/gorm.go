package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"chatroom/backend/internal/models"

	"gorm.io/gorm"
)

// GormStore persists messages through GORM (PostgreSQL or SQLite).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened and migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Append implements MessageStore. A single INSERT either commits or leaves
// nothing behind.
func (s *GormStore) Append(ctx context.Context, room, author, content string) (models.Message, error) {
	msg := models.Message{
		Room:      room,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return models.Message{}, fmt.Errorf("%w: append to %q: %w", ErrStoreFailure, room, err)
	}
	return msg, nil
}

// Recent implements MessageStore.
func (s *GormStore) Recent(ctx context.Context, room string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("room = ?", room).
		Order("id DESC").
		Limit(normalizeLimit(limit)).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: recent for %q: %w", ErrStoreFailure, room, err)
	}

	slices.Reverse(msgs)
	if msgs == nil {
		msgs = []models.Message{}
	}
	for i := range msgs {
		msgs[i].CreatedAt = msgs[i].CreatedAt.UTC()
	}
	return msgs, nil
}
