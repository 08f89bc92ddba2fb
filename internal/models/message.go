package models

import "time"

// SystemAuthor is the author of synthetic room notices. Notices are broadcast
// but never persisted.
const SystemAuthor = "System"

// Message represents a persisted chat message within a room.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;index:idx_messages_room_id,priority:2" json:"id"`
	Room      string    `gorm:"size:64;not null;index:idx_messages_room_id,priority:1" json:"room"`
	Author    string    `gorm:"size:255;not null" json:"author"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
