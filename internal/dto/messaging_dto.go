package dto

import (
	"encoding/json"
	"time"

	"github.com/modu-office/modu-api/internal/models"
)

// ChannelResponse is the serialized form of a topic channel.
type ChannelResponse struct {
	ID        uint   `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	GroupName string `json:"group_name,omitempty"`
	SortOrder int    `json:"sort_order"`
}

// ChannelGroupResponse groups channels for display; the ungrouped set
// comes first with an empty group name.
type ChannelGroupResponse struct {
	GroupName string            `json:"group_name"`
	Channels  []ChannelResponse `json:"channels"`
}

// NewChannelResponse converts a channel model into a DTO.
func NewChannelResponse(channel models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:        channel.ID,
		Slug:      channel.Slug,
		Name:      channel.Name,
		GroupName: channel.GroupName,
		SortOrder: channel.SortOrder,
	}
}

// RoomMemberSummary is the directory profile slice exposed on room lists.
type RoomMemberSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// RoomResponse describes one room the caller belongs to.
type RoomResponse struct {
	ID          uint                `json:"id"`
	Name        string              `json:"name"`
	MemberCount int                 `json:"member_count"`
	Members     []RoomMemberSummary `json:"members"`
	CreatedAt   time.Time           `json:"created_at"`
}

// DirectRoomResponse tags a direct room with whether it already existed.
type DirectRoomResponse struct {
	Room     RoomResponse `json:"room"`
	Existing bool         `json:"existing"`
}

// DirectRoomRequest asks for the 1:1 room with another user.
type DirectRoomRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

// GroupRoomCreateRequest creates a named multi-party room. The creator
// is always included on top of the supplied member list.
type GroupRoomCreateRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=255"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1,dive,required,max=64"`
}

// AttachmentResponse is one attachment reference on a post.
type AttachmentResponse struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	FileName string `json:"file_name,omitempty"`
}

// AttachmentUpload carries one inbound attachment's bytes and metadata
// from the transport layer into the attachment policy check.
type AttachmentUpload struct {
	FileName string
	Size     int64
	Data     []byte
}

// PostCreateRequest is the payload to publish a post into exactly one of
// channel or room scope.
type PostCreateRequest struct {
	ChannelID   *uint  `json:"channel_id"`
	RoomID      *uint  `json:"room_id"`
	Content     string `json:"content" validate:"omitempty,max=4000"`
	Attachments []AttachmentUpload
}

// PostListQuery filters and paginates a post feed. Limit is clamped by
// the service rather than validated, so out-of-range values page instead
// of failing.
type PostListQuery struct {
	ChannelID *uint  `query:"channel_id"`
	RoomID    *uint  `query:"room_id"`
	Cursor    uint   `query:"cursor"`
	Limit     int    `query:"limit"`
	Search    string `query:"search" validate:"omitempty,max=255"`
}

// PostResponse is one post with its derived reaction and read aggregates.
type PostResponse struct {
	ID          uint                 `json:"id"`
	AuthorID    string               `json:"author_id"`
	ChannelID   *uint                `json:"channel_id,omitempty"`
	RoomID      *uint                `json:"room_id,omitempty"`
	Content     string               `json:"content"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
	Reactions   map[string]int64     `json:"reactions"`
	ReadCount   int64                `json:"read_count"`
	CreatedAt   time.Time            `json:"created_at"`
}

// PostListResponse is one page of a feed. NextCursor of zero means the
// final page.
type PostListResponse struct {
	Posts      []PostResponse `json:"posts"`
	NextCursor uint           `json:"next_cursor,omitempty"`
}

// ReactionToggleRequest toggles one emoji for the caller on a post.
type ReactionToggleRequest struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

// ReactionCountResponse is the post-toggle emoji tally for a post.
type ReactionCountResponse struct {
	Reactions map[string]int64 `json:"reactions"`
}

// ReadCountResponse is the distinct-reader count after a mark-read.
type ReadCountResponse struct {
	ReadCount int64 `json:"read_count"`
}

// NewPostResponse converts a post model plus its aggregates into a DTO.
func NewPostResponse(post models.Post, reactions map[string]int64, readCount int64) PostResponse {
	if reactions == nil {
		reactions = map[string]int64{}
	}

	response := PostResponse{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		ChannelID: post.ChannelID,
		RoomID:    post.RoomID,
		Content:   post.Content,
		Reactions: reactions,
		ReadCount: readCount,
		CreatedAt: post.CreatedAt,
	}

	if len(post.Attachments) > 0 {
		var attachments []models.Attachment
		if err := json.Unmarshal(post.Attachments, &attachments); err == nil {
			for _, attachment := range attachments {
				response.Attachments = append(response.Attachments, AttachmentResponse{
					Type:     attachment.Type,
					URL:      attachment.URL,
					FileName: attachment.FileName,
				})
			}
		}
	}

	return response
}
