package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/modu-office/modu-api/internal/models"
)

// NotificationRepository handles persistence for notification entities.
// Rows are only ever soft-deleted; gorm.DeletedAt keeps deleted rows out
// of every query here, including the dedup-window probe.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	// HasRecentDuplicate reports whether a live notification with the
	// same (user, type, link) was created at or after the given instant.
	HasRecentDuplicate(ctx context.Context, userID, notificationType, link string, since time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	FindByID(ctx context.Context, id uint) (models.Notification, error)
	MarkRead(ctx context.Context, id uint) error
	SoftDelete(ctx context.Context, id uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) HasRecentDuplicate(ctx context.Context, userID, notificationType, link string, since time.Time) (bool, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND link = ?", userID, notificationType, link).
		Where("created_at >= ?", since).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).First(&notification, id).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

func (r *notificationRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Notification{}, id).Error
}
