package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/modu-office/modu-api/internal/models"
)

// PostScope selects which feed a query runs against. Exactly one of
// ChannelID/RoomID is set; IncludeLegacy additionally matches posts
// carrying neither scope (the pre-channel default feed).
type PostScope struct {
	ChannelID     *uint
	RoomID        *uint
	IncludeLegacy bool
	Search        string
}

// PostRepository persists posts and their reaction/read child rows.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id uint) (models.Post, error)
	// ListPage fetches one keyset page, newest first. The returned cursor
	// is the id of the last row when another page exists, zero otherwise.
	ListPage(ctx context.Context, scope PostScope, cursor uint, limit int) ([]models.Post, uint, error)
	// ToggleReaction deletes the (post,user,emoji) row when present,
	// inserts it otherwise. Reports whether the reaction is now active.
	ToggleReaction(ctx context.Context, postID uint, userID, emoji string) (bool, error)
	ReactionCounts(ctx context.Context, postID uint) (map[string]int64, error)
	ReactionCountsForPosts(ctx context.Context, postIDs []uint) (map[uint]map[string]int64, error)
	// UpsertReadReceipt inserts or refreshes the (post,user) receipt.
	UpsertReadReceipt(ctx context.Context, postID uint, userID string) error
	ReadCount(ctx context.Context, postID uint) (int64, error)
	ReadCountsForPosts(ctx context.Context, postIDs []uint) (map[uint]int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository constructs a post repository backed by GORM.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) FindByID(ctx context.Context, id uint) (models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (r *postRepository) scoped(ctx context.Context, scope PostScope) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Post{})

	switch {
	case scope.RoomID != nil:
		query = query.Where("room_id = ?", *scope.RoomID)
	case scope.ChannelID != nil && scope.IncludeLegacy:
		query = query.Where("channel_id = ? OR (channel_id IS NULL AND room_id IS NULL)", *scope.ChannelID)
	case scope.ChannelID != nil:
		query = query.Where("channel_id = ?", *scope.ChannelID)
	default:
		query = query.Where("channel_id IS NULL AND room_id IS NULL")
	}

	if scope.Search != "" {
		query = query.Where("content LIKE ?", "%"+scope.Search+"%")
	}

	return query
}

func (r *postRepository) ListPage(ctx context.Context, scope PostScope, cursor uint, limit int) ([]models.Post, uint, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := r.scoped(ctx, scope)

	if cursor != 0 {
		var anchor models.Post
		if err := r.db.WithContext(ctx).Select("id", "created_at").First(&anchor, cursor).Error; err != nil {
			return nil, 0, err
		}
		// created_at alone is not unique; the id tiebreak keeps the total
		// order stable across pages.
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	var posts []models.Post
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}

	var nextCursor uint
	if len(posts) > limit {
		posts = posts[:limit]
		nextCursor = posts[limit-1].ID
	}

	return posts, nextCursor, nil
}

func (r *postRepository) ToggleReaction(ctx context.Context, postID uint, userID, emoji string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ? AND emoji = ?", postID, userID, emoji).
		Delete(&models.Reaction{})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return false, nil
	}

	// Insert-if-absent: under a concurrent identical toggle the unique
	// triple makes the second insert a no-op instead of a duplicate.
	reaction := models.Reaction{PostID: postID, UserID: userID, Emoji: emoji, CreatedAt: time.Now()}
	result = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reaction)
	if result.Error != nil {
		return false, result.Error
	}

	return true, nil
}

type reactionCountRow struct {
	PostID uint
	Emoji  string
	Total  int64
}

func (r *postRepository) ReactionCounts(ctx context.Context, postID uint) (map[string]int64, error) {
	counts, err := r.ReactionCountsForPosts(ctx, []uint{postID})
	if err != nil {
		return nil, err
	}
	if byEmoji, ok := counts[postID]; ok {
		return byEmoji, nil
	}
	return map[string]int64{}, nil
}

func (r *postRepository) ReactionCountsForPosts(ctx context.Context, postIDs []uint) (map[uint]map[string]int64, error) {
	result := make(map[uint]map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	var rows []reactionCountRow
	err := r.db.WithContext(ctx).
		Model(&models.Reaction{}).
		Select("post_id, emoji, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Group("emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if _, ok := result[row.PostID]; !ok {
			result[row.PostID] = make(map[string]int64)
		}
		result[row.PostID][row.Emoji] = row.Total
	}

	return result, nil
}

func (r *postRepository) UpsertReadReceipt(ctx context.Context, postID uint, userID string) error {
	receipt := models.ReadReceipt{PostID: postID, UserID: userID, ReadAt: time.Now()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"read_at": receipt.ReadAt}),
		}).
		Create(&receipt).Error
}

func (r *postRepository) ReadCount(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReadReceipt{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

type readCountRow struct {
	PostID uint
	Total  int64
}

func (r *postRepository) ReadCountsForPosts(ctx context.Context, postIDs []uint) (map[uint]int64, error) {
	result := make(map[uint]int64, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	var rows []readCountRow
	err := r.db.WithContext(ctx).
		Model(&models.ReadReceipt{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.PostID] = row.Total
	}

	return result, nil
}
