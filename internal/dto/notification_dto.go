package dto

import (
	"time"

	"github.com/modu-office/modu-api/internal/models"
)

// NotificationCreateRequest is the single entry point every domain
// action uses to alert a user.
type NotificationCreateRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Type   string `json:"type" validate:"required,max=64"`
	Title  string `json:"title" validate:"required,min=1,max=255"`
	Link   string `json:"link" validate:"omitempty,max=512"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationCreateResult reports the outcome of a create call. A
// dedup-suppressed duplicate is a success with Skipped set and no
// notification payload.
type NotificationCreateResult struct {
	Notification *NotificationResponse `json:"notification,omitempty"`
	Skipped      bool                  `json:"skipped"`
}

// NewNotificationResponse converts a notification model to a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Title:     model.Title,
		Link:      model.Link,
		IsRead:    model.IsRead,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

// PushSubscriptionKeys are the client-generated encryption parameters.
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required,max=255"`
	Auth   string `json:"auth" validate:"required,max=255"`
}

// PushSubscribeRequest registers one push endpoint for the caller.
type PushSubscribeRequest struct {
	Endpoint string               `json:"endpoint" validate:"required,url,max=512"`
	Keys     PushSubscriptionKeys `json:"keys" validate:"required"`
}

// PushPayload is the encrypted message body sent to every endpoint.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}
