package models

import "gorm.io/gorm"

// User is a registered account. Username is the identity carried in tokens
// and shown in rooms.
type User struct {
	gorm.Model
	Username     string `gorm:"size:255;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`
}
