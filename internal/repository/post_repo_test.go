package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/modu-office/modu-api/internal/models"
)

func TestPostRepositoryListPageWalksEveryPost(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	channelID := seedChannel(t, db)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		post := models.Post{
			AuthorID:  "emp-1",
			ChannelID: &channelID,
			Content:   fmt.Sprintf("post %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), &post))
	}

	scope := PostScope{ChannelID: &channelID}
	seen := make(map[uint]bool)
	cursor := uint(0)
	pages := 0

	for {
		posts, next, err := repo.ListPage(context.Background(), scope, cursor, 10)
		require.NoError(t, err)
		for _, post := range posts {
			require.False(t, seen[post.ID], "post %d returned twice", post.ID)
			seen[post.ID] = true
		}
		pages++
		if next == 0 {
			break
		}
		cursor = next
	}

	require.Equal(t, 25, len(seen))
	require.Equal(t, 3, pages)
}

func TestPostRepositoryListPageNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	channelID := seedChannel(t, db)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		post := models.Post{
			AuthorID:  "emp-1",
			ChannelID: &channelID,
			Content:   fmt.Sprintf("post %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), &post))
	}

	posts, next, err := repo.ListPage(context.Background(), PostScope{ChannelID: &channelID}, 0, 10)
	require.NoError(t, err)
	require.Zero(t, next, "single page must not yield a cursor")
	require.Len(t, posts, 3)
	require.Equal(t, "post 2", posts[0].Content)
	require.Equal(t, "post 0", posts[2].Content)
}

func TestPostRepositoryScopeSeparatesChannelAndRoom(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)
	rooms := NewRoomRepository(db)

	channelID := seedChannel(t, db)
	room, err := rooms.Create(context.Background(), "pair", []string{"emp-1", "emp-2"})
	require.NoError(t, err)

	channelPost := models.Post{AuthorID: "emp-1", ChannelID: &channelID, Content: "on channel", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &channelPost))
	roomPost := models.Post{AuthorID: "emp-1", RoomID: &room.ID, Content: "in room", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &roomPost))
	legacyPost := models.Post{AuthorID: "emp-1", Content: "legacy", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &legacyPost))

	posts, _, err := repo.ListPage(context.Background(), PostScope{RoomID: &room.ID}, 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "in room", posts[0].Content)

	posts, _, err = repo.ListPage(context.Background(), PostScope{ChannelID: &channelID}, 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "on channel", posts[0].Content)

	// The default channel also absorbs posts written before channels existed.
	posts, _, err = repo.ListPage(context.Background(), PostScope{ChannelID: &channelID, IncludeLegacy: true}, 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
}

func TestPostRepositoryListPageFiltersBySearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	channelID := seedChannel(t, db)
	for _, content := range []string{"회의록 공유", "점심 메뉴", "회의 일정 변경"} {
		post := models.Post{AuthorID: "emp-1", ChannelID: &channelID, Content: content, CreatedAt: time.Now()}
		require.NoError(t, repo.Create(context.Background(), &post))
	}

	posts, _, err := repo.ListPage(context.Background(), PostScope{ChannelID: &channelID, Search: "회의"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
}

func TestPostRepositoryToggleReactionIsItsOwnInverse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	channelID := seedChannel(t, db)
	post := models.Post{AuthorID: "emp-1", ChannelID: &channelID, Content: "hello", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &post))

	active, err := repo.ToggleReaction(context.Background(), post.ID, "emp-2", "👍")
	require.NoError(t, err)
	require.True(t, active)

	counts, err := repo.ReactionCounts(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["👍"])

	active, err = repo.ToggleReaction(context.Background(), post.ID, "emp-2", "👍")
	require.NoError(t, err)
	require.False(t, active)

	counts, err = repo.ReactionCounts(context.Background(), post.ID)
	require.NoError(t, err)
	require.Zero(t, counts["👍"])
}

func TestPostRepositoryReactionCountsGroupPerUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	channelID := seedChannel(t, db)
	post := models.Post{AuthorID: "emp-1", ChannelID: &channelID, Content: "hello", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &post))

	for _, userID := range []string{"emp-2", "emp-3", "emp-4"} {
		_, err := repo.ToggleReaction(context.Background(), post.ID, userID, "❤️")
		require.NoError(t, err)
	}
	_, err := repo.ToggleReaction(context.Background(), post.ID, "emp-2", "😂")
	require.NoError(t, err)

	counts, err := repo.ReactionCounts(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), counts["❤️"])
	require.Equal(t, int64(1), counts["😂"])
}

func TestPostRepositoryReadReceiptIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	channelID := seedChannel(t, db)
	post := models.Post{AuthorID: "emp-1", ChannelID: &channelID, Content: "hello", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &post))

	require.NoError(t, repo.UpsertReadReceipt(context.Background(), post.ID, "emp-2"))
	require.NoError(t, repo.UpsertReadReceipt(context.Background(), post.ID, "emp-2"))
	require.NoError(t, repo.UpsertReadReceipt(context.Background(), post.ID, "emp-3"))

	count, err := repo.ReadCount(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func seedChannel(t *testing.T, db *gorm.DB) uint {
	t.Helper()
	channel := models.Channel{Slug: "general", Name: "일반", SortOrder: 0}
	require.NoError(t, db.Create(&channel).Error)
	return channel.ID
}
