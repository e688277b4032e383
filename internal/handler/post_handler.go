package handler

import (
	"context"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/middleware"
	"github.com/modu-office/modu-api/internal/service"
	"github.com/modu-office/modu-api/internal/utils"
)

// PostHandler exposes the post feed, reaction and read-receipt endpoints.
type PostHandler struct {
	service service.PostService
	logger  zerolog.Logger
}

// NewPostHandler constructs a handler instance.
func NewPostHandler(service service.PostService, logger zerolog.Logger) *PostHandler {
	return &PostHandler{
		service: service,
		logger:  logger.With().Str("component", "post_handler").Logger(),
	}
}

// Register binds the post routes.
func (h *PostHandler) Register(router fiber.Router) {
	router.Get("/posts", h.list)
	router.Post("/posts", h.create)
	router.Post("/posts/:id/reactions", h.toggleReaction)
	router.Post("/posts/:id/read", h.markRead)
}

func (h *PostHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	query := dto.PostListQuery{Search: strings.TrimSpace(c.Query("search"))}

	channelID, err := parseQueryUint(c, "channel_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid channel_id")
	}
	if channelID != 0 {
		query.ChannelID = &channelID
	}

	roomID, err := parseQueryUint(c, "room_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid room_id")
	}
	if roomID != 0 {
		query.RoomID = &roomID
	}

	if query.Cursor, err = parseQueryUint(c, "cursor"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid cursor")
	}
	if query.Limit, err = parseQueryInt(c, "limit"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	posts, err := h.service.List(h.requestContext(c), userID, query)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "posts", posts)
}

func (h *PostHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	payload, err := h.parseCreatePayload(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	post, err := h.service.Create(h.requestContext(c), userID, payload)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "post created", post)
}

// parseCreatePayload accepts either a JSON body (text-only posts) or a
// multipart form carrying attachment files.
func (h *PostHandler) parseCreatePayload(c *fiber.Ctx) (dto.PostCreateRequest, error) {
	contentType := string(c.Request().Header.ContentType())
	if strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		var payload dto.PostCreateRequest
		if err := c.BodyParser(&payload); err != nil {
			return dto.PostCreateRequest{}, err
		}
		payload.Attachments = nil
		return dto.PostCreateRequest{
			ChannelID: payload.ChannelID,
			RoomID:    payload.RoomID,
			Content:   payload.Content,
		}, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return dto.PostCreateRequest{}, err
	}

	payload := dto.PostCreateRequest{Content: firstFormValue(form, "content")}
	if raw := firstFormValue(form, "channel_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return dto.PostCreateRequest{}, err
		}
		channelID := uint(id)
		payload.ChannelID = &channelID
	}
	if raw := firstFormValue(form, "room_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return dto.PostCreateRequest{}, err
		}
		roomID := uint(id)
		payload.RoomID = &roomID
	}

	for _, file := range form.File["attachments"] {
		upload, err := readUpload(file)
		if err != nil {
			h.logger.Warn().Err(err).Str("file_name", file.Filename).Msg("skipping unreadable attachment")
			continue
		}
		payload.Attachments = append(payload.Attachments, upload)
	}

	return payload, nil
}

func firstFormValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func readUpload(file *multipart.FileHeader) (dto.AttachmentUpload, error) {
	handle, err := file.Open()
	if err != nil {
		return dto.AttachmentUpload{}, err
	}
	defer handle.Close()

	data, err := io.ReadAll(handle)
	if err != nil {
		return dto.AttachmentUpload{}, err
	}

	return dto.AttachmentUpload{
		FileName: file.Filename,
		Size:     file.Size,
		Data:     data,
	}, nil
}

func (h *PostHandler) toggleReaction(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	postID, err := parseParamID(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid post id")
	}

	var payload dto.ReactionToggleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	counts, err := h.service.ToggleReaction(h.requestContext(c), userID, postID, payload.Emoji)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "reaction toggled", counts)
}

func (h *PostHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	postID, err := parseParamID(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid post id")
	}

	count, err := h.service.MarkRead(h.requestContext(c), userID, postID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "post read", count)
}

func (h *PostHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
