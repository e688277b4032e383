package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/modu-office/modu-api/internal/models"
)

// RoomRepository persists rooms and their member sets.
type RoomRepository interface {
	// Create stores the room and one membership row per member in a
	// single transaction.
	Create(ctx context.Context, name string, memberIDs []string) (models.Room, error)
	// ListByUser returns every room the user belongs to with memberships
	// preloaded, in insertion order.
	ListByUser(ctx context.Context, userID string) ([]models.Room, error)
	// FindSelfRoom locates the user's sole-member room. When duplicates
	// exist the lowest id wins; gorm.ErrRecordNotFound when absent.
	FindSelfRoom(ctx context.Context, userID string) (models.Room, error)
	// FindDirectRoom locates the two-member room shared by exactly the
	// given pair; gorm.ErrRecordNotFound when absent.
	FindDirectRoom(ctx context.Context, userID, otherID string) (models.Room, error)
	FindByID(ctx context.Context, id uint) (models.Room, error)
	IsMember(ctx context.Context, roomID uint, userID string) (bool, error)
	MemberIDs(ctx context.Context, roomID uint) ([]string, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a room repository backed by GORM.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, name string, memberIDs []string) (models.Room, error) {
	room := models.Room{Name: name}
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}

		memberships := make([]models.RoomMembership, 0, len(memberIDs))
		for _, memberID := range memberIDs {
			memberships = append(memberships, models.RoomMembership{
				RoomID:   room.ID,
				UserID:   memberID,
				JoinedAt: now,
			})
		}

		return tx.Create(&memberships).Error
	})
	if err != nil {
		return models.Room{}, err
	}

	return r.FindByID(ctx, room.ID)
}

func (r *roomRepository) ListByUser(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_memberships ON room_memberships.room_id = rooms.id AND room_memberships.user_id = ?", userID).
		Preload("Memberships").
		Order("rooms.id ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *roomRepository) FindSelfRoom(ctx context.Context, userID string) (models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_memberships ON room_memberships.room_id = rooms.id AND room_memberships.user_id = ?", userID).
		Where("(SELECT COUNT(*) FROM room_memberships m WHERE m.room_id = rooms.id) = 1").
		Order("rooms.id ASC").
		First(&room).Error
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) FindDirectRoom(ctx context.Context, userID, otherID string) (models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_memberships m1 ON m1.room_id = rooms.id AND m1.user_id = ?", userID).
		Joins("JOIN room_memberships m2 ON m2.room_id = rooms.id AND m2.user_id = ?", otherID).
		Where("(SELECT COUNT(*) FROM room_memberships m WHERE m.room_id = rooms.id) = 2").
		Order("rooms.id ASC").
		First(&room).Error
	if err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) FindByID(ctx context.Context, id uint) (models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Preload("Memberships").First(&room, id).Error; err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *roomRepository) IsMember(ctx context.Context, roomID uint, userID string) (bool, error) {
	var membership models.RoomMembership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *roomRepository) MemberIDs(ctx context.Context, roomID uint) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.RoomMembership{}).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
