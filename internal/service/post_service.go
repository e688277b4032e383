package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/modu-office/modu-api/internal/directory"
	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/models"
	"github.com/modu-office/modu-api/internal/observability"
	"github.com/modu-office/modu-api/internal/repository"
)

const (
	maxImageBytes = 5 << 20
	maxVideoBytes = 50 << 20

	defaultPostLimit = 20
	maxPostLimit     = 100

	// Substituted when a post carries attachments but no text.
	attachmentPlaceholder = "(첨부파일)"

	notificationTypeRoomMessage = "room_message"

	titleSnippetRunes = 40
)

// allowedEmojis is the fixed server-side reaction allow-list.
var allowedEmojis = map[string]struct{}{
	"👍": {}, "❤️": {}, "😂": {}, "😮": {}, "😢": {}, "🙏": {},
}

// FileStorage abstracts the external blob store attachments are written
// to. It returns a retrievable URL; this core never keeps the bytes.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// Notifier is the slice of the notification service the post fan-out
// needs. Calls are fire-and-forget from the post's perspective.
type Notifier interface {
	Create(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationCreateResult, error)
}

// PostService creates and paginates posts and manages their reaction and
// read-receipt aggregates.
type PostService interface {
	List(ctx context.Context, callerID string, query dto.PostListQuery) (dto.PostListResponse, error)
	Create(ctx context.Context, callerID string, payload dto.PostCreateRequest) (dto.PostResponse, error)
	ToggleReaction(ctx context.Context, callerID string, postID uint, emoji string) (dto.ReactionCountResponse, error)
	MarkRead(ctx context.Context, callerID string, postID uint) (dto.ReadCountResponse, error)
}

type postService struct {
	posts     repository.PostRepository
	rooms     repository.RoomRepository
	channels  repository.ChannelRepository
	users     directory.Gateway
	notifier  Notifier
	storage   FileStorage
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewPostService constructs a post service.
func NewPostService(posts repository.PostRepository, rooms repository.RoomRepository, channels repository.ChannelRepository, users directory.Gateway, notifier Notifier, storage FileStorage, validate *validator.Validate, logger zerolog.Logger) PostService {
	return &postService{
		posts:     posts,
		rooms:     rooms,
		channels:  channels,
		users:     users,
		notifier:  notifier,
		storage:   storage,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "post_service").Logger(),
		tracer:    otel.Tracer("github.com/modu-office/modu-api/internal/service/post"),
	}
}

func (s *postService) List(ctx context.Context, callerID string, query dto.PostListQuery) (dto.PostListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.PostListResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPostLimit
	}
	if limit > maxPostLimit {
		limit = maxPostLimit
	}

	scope := repository.PostScope{Search: strings.TrimSpace(query.Search)}
	switch {
	case query.RoomID != nil:
		member, err := s.rooms.IsMember(ctx, *query.RoomID, callerID)
		if err != nil {
			return dto.PostListResponse{}, err
		}
		if !member {
			return dto.PostListResponse{}, fmt.Errorf("%w: not a member of room %d", ErrForbidden, *query.RoomID)
		}
		scope.RoomID = query.RoomID
	case query.ChannelID != nil:
		if _, err := s.channels.FindByID(ctx, *query.ChannelID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.PostListResponse{}, fmt.Errorf("%w: channel %d", ErrNotFound, *query.ChannelID)
			}
			return dto.PostListResponse{}, err
		}
		scope.ChannelID = query.ChannelID
	default:
		// Default feed: the lowest sort-order channel plus legacy posts
		// that predate channel scoping.
		channel, err := s.channels.FirstByOrder(ctx)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PostListResponse{}, err
		}
		if err == nil {
			scope.ChannelID = &channel.ID
		}
		scope.IncludeLegacy = true
	}

	posts, nextCursor, err := s.posts.ListPage(ctx, scope, query.Cursor, limit)
	if err != nil {
		if query.Cursor != 0 && errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PostListResponse{}, fmt.Errorf("%w: cursor post %d", ErrNotFound, query.Cursor)
		}
		return dto.PostListResponse{}, err
	}

	postIDs := make([]uint, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
	}

	reactionCounts, err := s.posts.ReactionCountsForPosts(ctx, postIDs)
	if err != nil {
		return dto.PostListResponse{}, err
	}
	readCounts, err := s.posts.ReadCountsForPosts(ctx, postIDs)
	if err != nil {
		return dto.PostListResponse{}, err
	}

	response := dto.PostListResponse{
		Posts:      make([]dto.PostResponse, 0, len(posts)),
		NextCursor: nextCursor,
	}
	for _, post := range posts {
		response.Posts = append(response.Posts, dto.NewPostResponse(post, reactionCounts[post.ID], readCounts[post.ID]))
	}

	return response, nil
}

func (s *postService) Create(ctx context.Context, callerID string, payload dto.PostCreateRequest) (dto.PostResponse, error) {
	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			// An unknown caller is a rights problem, not a
			// missing-resource one.
			return dto.PostResponse{}, fmt.Errorf("%w: caller is not approved", ErrForbidden)
		}
		return dto.PostResponse{}, fmt.Errorf("resolve caller %s: %w", callerID, err)
	}
	if !caller.Approved() {
		return dto.PostResponse{}, fmt.Errorf("%w: caller is not approved", ErrForbidden)
	}

	if payload.ChannelID != nil && payload.RoomID != nil {
		return dto.PostResponse{}, fmt.Errorf("%w: post must target a single scope", ErrInvalidRequest)
	}
	if payload.ChannelID == nil && payload.RoomID == nil {
		return dto.PostResponse{}, fmt.Errorf("%w: channel or room is required", ErrInvalidRequest)
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if content == "" && len(payload.Attachments) == 0 {
		return dto.PostResponse{}, fmt.Errorf("%w: post needs text or attachments", ErrInvalidRequest)
	}

	if payload.RoomID != nil {
		member, err := s.rooms.IsMember(ctx, *payload.RoomID, callerID)
		if err != nil {
			return dto.PostResponse{}, err
		}
		if !member {
			return dto.PostResponse{}, fmt.Errorf("%w: not a member of room %d", ErrForbidden, *payload.RoomID)
		}
	}
	if payload.ChannelID != nil {
		if _, err := s.channels.FindByID(ctx, *payload.ChannelID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.PostResponse{}, fmt.Errorf("%w: channel %d", ErrNotFound, *payload.ChannelID)
			}
			return dto.PostResponse{}, err
		}
	}

	attrs := []attribute.KeyValue{attribute.String("post.author_id", callerID)}
	if payload.RoomID != nil {
		attrs = append(attrs, attribute.Int64("post.room_id", int64(*payload.RoomID)))
	}
	if payload.ChannelID != nil {
		attrs = append(attrs, attribute.Int64("post.channel_id", int64(*payload.ChannelID)))
	}
	spanCtx, span := s.tracer.Start(ctx, "posts.create", trace.WithAttributes(attrs...))
	defer span.End()

	attachments := s.storeAttachments(spanCtx, payload.Attachments)

	if content == "" {
		content = attachmentPlaceholder
	}

	post := models.Post{
		AuthorID:  callerID,
		ChannelID: payload.ChannelID,
		RoomID:    payload.RoomID,
		Content:   content,
	}
	if len(attachments) > 0 {
		encoded, err := json.Marshal(attachments)
		if err != nil {
			span.RecordError(err)
			return dto.PostResponse{}, err
		}
		post.Attachments = datatypes.JSON(encoded)
	}

	if err := s.posts.Create(spanCtx, &post); err != nil {
		span.RecordError(err)
		return dto.PostResponse{}, err
	}

	scopeLabel := "channel"
	if post.RoomID != nil {
		scopeLabel = "room"
	}
	observability.PostsCreatedTotal().WithLabelValues(scopeLabel).Inc()

	if post.RoomID != nil {
		s.notifyRoomMembers(spanCtx, caller, post)
	}

	return dto.NewPostResponse(post, nil, 0), nil
}

// storeAttachments applies the attachment policy and writes survivors to
// blob storage. Any file failing its type or size check, or failing to
// upload, is dropped rather than failing the post.
func (s *postService) storeAttachments(ctx context.Context, uploads []dto.AttachmentUpload) []models.Attachment {
	if len(uploads) == 0 {
		return nil
	}

	attachments := make([]models.Attachment, 0, len(uploads))
	for _, upload := range uploads {
		kind, limit := classifyAttachment(upload.Data)
		if kind == "" {
			observability.AttachmentsRejectedTotal().WithLabelValues("type").Inc()
			s.logger.Warn().Str("file_name", upload.FileName).Msg("dropping attachment with unsupported type")
			continue
		}
		if upload.Size > limit || int64(len(upload.Data)) > limit {
			observability.AttachmentsRejectedTotal().WithLabelValues("size").Inc()
			s.logger.Warn().Str("file_name", upload.FileName).Int64("size", upload.Size).Msg("dropping oversized attachment")
			continue
		}

		url, err := s.storage.Upload(ctx, upload.FileName, bytes.NewReader(upload.Data))
		if err != nil {
			observability.AttachmentsRejectedTotal().WithLabelValues("storage").Inc()
			s.logger.Warn().Err(err).Str("file_name", upload.FileName).Msg("dropping attachment after storage failure")
			continue
		}

		attachments = append(attachments, models.Attachment{
			Type:     kind,
			URL:      url,
			FileName: upload.FileName,
		})
	}

	return attachments
}

// classifyAttachment sniffs the payload and returns its kind and size
// limit, or an empty kind when the type is not allowed.
func classifyAttachment(data []byte) (string, int64) {
	detected := mimetype.Detect(data)
	switch {
	case strings.HasPrefix(detected.String(), "image/"):
		return "image", maxImageBytes
	case strings.HasPrefix(detected.String(), "video/"):
		return "video", maxVideoBytes
	default:
		return "", 0
	}
}

// notifyRoomMembers fans one notification out per other room member.
// Failures here never surface to the post's caller; each recipient is
// isolated so one failure cannot abort the rest.
func (s *postService) notifyRoomMembers(ctx context.Context, author directory.Profile, post models.Post) {
	memberIDs, err := s.rooms.MemberIDs(ctx, *post.RoomID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("room_id", *post.RoomID).Msg("failed to load room members for notification")
		return
	}

	title := fmt.Sprintf("%s: %s", author.Name, snippet(post.Content, titleSnippetRunes))
	link := fmt.Sprintf("/rooms/%d", *post.RoomID)

	for _, memberID := range memberIDs {
		if memberID == post.AuthorID {
			continue
		}
		_, err := s.notifier.Create(ctx, dto.NotificationCreateRequest{
			UserID: memberID,
			Type:   notificationTypeRoomMessage,
			Title:  title,
			Link:   link,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", memberID).Uint("room_id", *post.RoomID).Msg("failed to notify room member")
		}
	}
}

func (s *postService) ToggleReaction(ctx context.Context, callerID string, postID uint, emoji string) (dto.ReactionCountResponse, error) {
	if _, ok := allowedEmojis[emoji]; !ok {
		return dto.ReactionCountResponse{}, fmt.Errorf("%w: emoji not allowed", ErrInvalidRequest)
	}

	post, err := s.loadAccessiblePost(ctx, callerID, postID)
	if err != nil {
		return dto.ReactionCountResponse{}, err
	}

	active, err := s.posts.ToggleReaction(ctx, post.ID, callerID, emoji)
	if err != nil {
		return dto.ReactionCountResponse{}, err
	}

	state := "removed"
	if active {
		state = "added"
	}
	observability.ReactionsToggledTotal().WithLabelValues(state).Inc()

	counts, err := s.posts.ReactionCounts(ctx, post.ID)
	if err != nil {
		return dto.ReactionCountResponse{}, err
	}

	return dto.ReactionCountResponse{Reactions: counts}, nil
}

func (s *postService) MarkRead(ctx context.Context, callerID string, postID uint) (dto.ReadCountResponse, error) {
	post, err := s.loadAccessiblePost(ctx, callerID, postID)
	if err != nil {
		return dto.ReadCountResponse{}, err
	}

	if err := s.posts.UpsertReadReceipt(ctx, post.ID, callerID); err != nil {
		return dto.ReadCountResponse{}, err
	}

	count, err := s.posts.ReadCount(ctx, post.ID)
	if err != nil {
		return dto.ReadCountResponse{}, err
	}

	return dto.ReadCountResponse{ReadCount: count}, nil
}

// loadAccessiblePost fetches a post and enforces the room membership
// gate shared by reaction and read-receipt operations.
func (s *postService) loadAccessiblePost(ctx context.Context, callerID string, postID uint) (models.Post, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Post{}, fmt.Errorf("%w: post %d", ErrNotFound, postID)
		}
		return models.Post{}, err
	}

	if post.RoomID != nil {
		member, err := s.rooms.IsMember(ctx, *post.RoomID, callerID)
		if err != nil {
			return models.Post{}, err
		}
		if !member {
			return models.Post{}, fmt.Errorf("%w: not a member of room %d", ErrForbidden, *post.RoomID)
		}
	}

	return post, nil
}

func snippet(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "…"
}
