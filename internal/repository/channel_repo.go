package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/modu-office/modu-api/internal/models"
)

// ChannelRepository persists topic channels. Channels are never deleted.
type ChannelRepository interface {
	List(ctx context.Context) ([]models.Channel, error)
	Count(ctx context.Context) (int64, error)
	// SeedDefaults inserts the given channels, silently skipping any slug
	// that already exists so a concurrent cold-start seed stays benign.
	SeedDefaults(ctx context.Context, channels []models.Channel) error
	FindByID(ctx context.Context, id uint) (models.Channel, error)
	// FirstByOrder returns the lowest sort-order channel, the default
	// scope for feed requests that name neither channel nor room.
	FirstByOrder(ctx context.Context) (models.Channel, error)
}

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository constructs a channel repository backed by GORM.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) List(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).
		Order("sort_order ASC").
		Order("name ASC").
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Channel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *channelRepository) SeedDefaults(ctx context.Context, channels []models.Channel) error {
	if len(channels) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).
		Create(&channels).Error
}

func (r *channelRepository) FindByID(ctx context.Context, id uint) (models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) FirstByOrder(ctx context.Context) (models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).
		Order("sort_order ASC").
		Order("id ASC").
		First(&channel).Error; err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}
