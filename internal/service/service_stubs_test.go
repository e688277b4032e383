package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/modu-office/modu-api/internal/directory"
	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/models"
	"github.com/modu-office/modu-api/internal/repository"
)

type channelRepoStub struct {
	channels []models.Channel
	nextID   uint
}

func (c *channelRepoStub) List(context.Context) ([]models.Channel, error) {
	return c.channels, nil
}

func (c *channelRepoStub) Count(context.Context) (int64, error) {
	return int64(len(c.channels)), nil
}

func (c *channelRepoStub) SeedDefaults(_ context.Context, channels []models.Channel) error {
	for _, channel := range channels {
		c.nextID++
		channel.ID = c.nextID
		c.channels = append(c.channels, channel)
	}
	return nil
}

func (c *channelRepoStub) FindByID(_ context.Context, id uint) (models.Channel, error) {
	for _, channel := range c.channels {
		if channel.ID == id {
			return channel, nil
		}
	}
	return models.Channel{}, gorm.ErrRecordNotFound
}

func (c *channelRepoStub) FirstByOrder(context.Context) (models.Channel, error) {
	if len(c.channels) == 0 {
		return models.Channel{}, gorm.ErrRecordNotFound
	}
	first := c.channels[0]
	for _, channel := range c.channels[1:] {
		if channel.SortOrder < first.SortOrder {
			first = channel
		}
	}
	return first, nil
}

type roomRepoStub struct {
	rooms   []models.Room
	nextID  uint
	created int
}

func (r *roomRepoStub) Create(_ context.Context, name string, memberIDs []string) (models.Room, error) {
	r.nextID++
	r.created++
	room := models.Room{ID: r.nextID, Name: name, CreatedAt: time.Now()}
	for _, memberID := range memberIDs {
		room.Memberships = append(room.Memberships, models.RoomMembership{
			RoomID:   room.ID,
			UserID:   memberID,
			JoinedAt: time.Now(),
		})
	}
	r.rooms = append(r.rooms, room)
	return room, nil
}

func (r *roomRepoStub) ListByUser(_ context.Context, userID string) ([]models.Room, error) {
	var joined []models.Room
	for _, room := range r.rooms {
		for _, membership := range room.Memberships {
			if membership.UserID == userID {
				joined = append(joined, room)
				break
			}
		}
	}
	return joined, nil
}

func (r *roomRepoStub) FindSelfRoom(_ context.Context, userID string) (models.Room, error) {
	for _, room := range r.rooms {
		if len(room.Memberships) == 1 && room.Memberships[0].UserID == userID {
			return room, nil
		}
	}
	return models.Room{}, gorm.ErrRecordNotFound
}

func (r *roomRepoStub) FindDirectRoom(_ context.Context, userID, otherID string) (models.Room, error) {
	for _, room := range r.rooms {
		if len(room.Memberships) != 2 {
			continue
		}
		members := map[string]bool{}
		for _, membership := range room.Memberships {
			members[membership.UserID] = true
		}
		if members[userID] && members[otherID] {
			return room, nil
		}
	}
	return models.Room{}, gorm.ErrRecordNotFound
}

func (r *roomRepoStub) FindByID(_ context.Context, id uint) (models.Room, error) {
	for _, room := range r.rooms {
		if room.ID == id {
			return room, nil
		}
	}
	return models.Room{}, gorm.ErrRecordNotFound
}

func (r *roomRepoStub) IsMember(_ context.Context, roomID uint, userID string) (bool, error) {
	for _, room := range r.rooms {
		if room.ID != roomID {
			continue
		}
		for _, membership := range room.Memberships {
			if membership.UserID == userID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *roomRepoStub) MemberIDs(_ context.Context, roomID uint) ([]string, error) {
	for _, room := range r.rooms {
		if room.ID != roomID {
			continue
		}
		ids := make([]string, 0, len(room.Memberships))
		for _, membership := range room.Memberships {
			ids = append(ids, membership.UserID)
		}
		return ids, nil
	}
	return nil, nil
}

type postRepoStub struct {
	posts     []models.Post
	nextID    uint
	reactions map[string]bool
	receipts  map[string]bool
	lastScope repository.PostScope
	lastLimit int
}

func newPostRepoStub() *postRepoStub {
	return &postRepoStub{
		reactions: map[string]bool{},
		receipts:  map[string]bool{},
	}
}

func (p *postRepoStub) Create(_ context.Context, post *models.Post) error {
	p.nextID++
	post.ID = p.nextID
	post.CreatedAt = time.Now()
	p.posts = append(p.posts, *post)
	return nil
}

func (p *postRepoStub) FindByID(_ context.Context, id uint) (models.Post, error) {
	for _, post := range p.posts {
		if post.ID == id {
			return post, nil
		}
	}
	return models.Post{}, gorm.ErrRecordNotFound
}

func (p *postRepoStub) ListPage(_ context.Context, scope repository.PostScope, _ uint, limit int) ([]models.Post, uint, error) {
	p.lastScope = scope
	p.lastLimit = limit
	if len(p.posts) > limit {
		return p.posts[:limit], p.posts[limit-1].ID, nil
	}
	return p.posts, 0, nil
}

func (p *postRepoStub) ToggleReaction(_ context.Context, postID uint, userID, emoji string) (bool, error) {
	key := fmt.Sprintf("%d:%s:%s", postID, userID, emoji)
	if p.reactions[key] {
		delete(p.reactions, key)
		return false, nil
	}
	p.reactions[key] = true
	return true, nil
}

func (p *postRepoStub) ReactionCounts(_ context.Context, postID uint) (map[string]int64, error) {
	counts := map[string]int64{}
	prefix := fmt.Sprintf("%d:", postID)
	for key := range p.reactions {
		if strings.HasPrefix(key, prefix) {
			parts := strings.SplitN(key, ":", 3)
			counts[parts[2]]++
		}
	}
	return counts, nil
}

func (p *postRepoStub) ReactionCountsForPosts(ctx context.Context, postIDs []uint) (map[uint]map[string]int64, error) {
	result := map[uint]map[string]int64{}
	for _, id := range postIDs {
		counts, _ := p.ReactionCounts(ctx, id)
		if len(counts) > 0 {
			result[id] = counts
		}
	}
	return result, nil
}

func (p *postRepoStub) UpsertReadReceipt(_ context.Context, postID uint, userID string) error {
	p.receipts[fmt.Sprintf("%d:%s", postID, userID)] = true
	return nil
}

func (p *postRepoStub) ReadCount(_ context.Context, postID uint) (int64, error) {
	var count int64
	prefix := fmt.Sprintf("%d:", postID)
	for key := range p.receipts {
		if strings.HasPrefix(key, prefix) {
			count++
		}
	}
	return count, nil
}

func (p *postRepoStub) ReadCountsForPosts(ctx context.Context, postIDs []uint) (map[uint]int64, error) {
	result := map[uint]int64{}
	for _, id := range postIDs {
		count, _ := p.ReadCount(ctx, id)
		if count > 0 {
			result[id] = count
		}
	}
	return result, nil
}

type directoryStub struct {
	profiles map[string]directory.Profile
	err      error
}

func (d *directoryStub) GetUser(_ context.Context, id string) (directory.Profile, error) {
	if d.err != nil {
		return directory.Profile{}, d.err
	}
	profile, ok := d.profiles[id]
	if !ok {
		return directory.Profile{}, directory.ErrUserNotFound
	}
	return profile, nil
}

func (d *directoryStub) GetUsers(_ context.Context, ids []string) (map[string]directory.Profile, error) {
	result := make(map[string]directory.Profile, len(ids))
	for _, id := range ids {
		if profile, ok := d.profiles[id]; ok {
			result[id] = profile
		}
	}
	return result, nil
}

type notifierStub struct {
	requests []dto.NotificationCreateRequest
	err      error
}

func (n *notifierStub) Create(_ context.Context, payload dto.NotificationCreateRequest) (dto.NotificationCreateResult, error) {
	if n.err != nil {
		return dto.NotificationCreateResult{}, n.err
	}
	n.requests = append(n.requests, payload)
	return dto.NotificationCreateResult{}, nil
}

type storageStub struct {
	uploads []string
	err     error
}

func (s *storageStub) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploads = append(s.uploads, name)
	return "https://files.test/" + name, nil
}

type pushStub struct {
	payloads []dto.PushPayload
}

func (p *pushStub) FanOut(_ context.Context, _ string, payload dto.PushPayload) {
	p.payloads = append(p.payloads, payload)
}
