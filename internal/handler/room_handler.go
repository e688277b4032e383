package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/middleware"
	"github.com/modu-office/modu-api/internal/service"
	"github.com/modu-office/modu-api/internal/utils"
)

// RoomHandler exposes channel listing and room management endpoints.
type RoomHandler struct {
	service service.RoomService
	logger  zerolog.Logger
}

// NewRoomHandler constructs a handler instance.
func NewRoomHandler(service service.RoomService, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		service: service,
		logger:  logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register binds the channel and room routes.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Get("/channels", h.listChannels)
	router.Get("/rooms", h.listRooms)
	router.Post("/rooms/direct", h.directRoom)
	router.Post("/rooms", h.createGroupRoom)
}

func (h *RoomHandler) listChannels(c *fiber.Ctx) error {
	channels, err := h.service.ListChannels(h.requestContext(c))
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "channels", channels)
}

func (h *RoomHandler) listRooms(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	rooms, err := h.service.ListRooms(h.requestContext(c), userID)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccess(c, "rooms", rooms)
}

func (h *RoomHandler) directRoom(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.DirectRoomRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	room, err := h.service.FindOrCreateDirectRoom(h.requestContext(c), userID, payload.UserID)
	if err != nil {
		return sendServiceError(c, err)
	}

	status := fiber.StatusCreated
	if room.Existing {
		status = fiber.StatusOK
	}
	return utils.SendSuccessWithStatus(c, status, "direct room", room)
}

func (h *RoomHandler) createGroupRoom(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.GroupRoomCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	room, err := h.service.CreateGroupRoom(h.requestContext(c), userID, payload)
	if err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "room created", room)
}

func (h *RoomHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
