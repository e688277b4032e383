package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification is an in-app alert for a single user. Append-only apart
// from mark-read and soft-delete; rows are never hard-deleted, so the
// DeletedAt index doubles as the dedup-window exclusion.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    string         `gorm:"size:64;index;not null" json:"user_id"`
	Type      string         `gorm:"size:64;index;not null" json:"type"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Link      string         `gorm:"size:512" json:"link,omitempty"`
	IsRead    bool           `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PushSubscription is one registered Web Push endpoint. Re-subscribing
// the same endpoint updates ownership and keys instead of duplicating;
// delivery prunes the row once the endpoint proves gone.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Endpoint  string    `gorm:"size:512;uniqueIndex;not null" json:"endpoint"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	P256dh    string    `gorm:"size:255;not null" json:"p256dh"`
	Auth      string    `gorm:"size:255;not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
