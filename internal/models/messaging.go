package models

import (
	"time"

	"gorm.io/datatypes"
)

// Channel is an open topic stream. Channels carry no membership: every
// approved user may read and post. The default set is seeded lazily on
// first listing; the slug uniqueness constraint reconciles a concurrent
// cold-start seed.
type Channel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	GroupName string    `gorm:"size:128;index" json:"group_name"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Room is a membership-gated conversation. Self rooms (one member, the
// owner) and direct rooms (two members) are distinguished only by their
// membership cardinality, never by a stored type flag.
type Room struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Name        string           `gorm:"size:255;not null" json:"name"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Memberships []RoomMembership `gorm:"constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
}

// RoomMembership ties a user to a room. Composite-unique per (room, user).
type RoomMembership struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"uniqueIndex:idx_room_member;not null" json:"room_id"`
	UserID   string    `gorm:"size:64;uniqueIndex:idx_room_member;index;not null" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Attachment is a value object embedded in a post's JSON column. The URL
// points at external blob storage; this core never holds the bytes.
type Attachment struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	FileName string `json:"file_name,omitempty"`
}

// Post is the atomic message unit, scoped to at most one of channel or
// room. Both scopes null means a legacy default-channel post. Posts are
// immutable once created; reactions and reads live in child tables.
type Post struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AuthorID    string         `gorm:"size:64;index;not null" json:"author_id"`
	ChannelID   *uint          `gorm:"index" json:"channel_id,omitempty"`
	RoomID      *uint          `gorm:"index" json:"room_id,omitempty"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Attachments datatypes.JSON `gorm:"type:json" json:"attachments,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

// Reaction marks one active emoji by one user on one post. The unique
// triple makes concurrent toggles converge on at most one row.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex:idx_post_user_emoji;not null" json:"post_id"`
	UserID    string    `gorm:"size:64;uniqueIndex:idx_post_user_emoji;not null" json:"user_id"`
	Emoji     string    `gorm:"size:16;uniqueIndex:idx_post_user_emoji;not null" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReadReceipt records that a user has seen a post. Upserted per
// (post, user); the exposed read count is the distinct-row count.
type ReadReceipt struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	PostID uint      `gorm:"uniqueIndex:idx_post_reader;not null" json:"post_id"`
	UserID string    `gorm:"size:64;uniqueIndex:idx_post_reader;not null" json:"user_id"`
	ReadAt time.Time `gorm:"not null" json:"read_at"`
}
