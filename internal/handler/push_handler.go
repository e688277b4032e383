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

// PushHandler registers browser push subscriptions.
type PushHandler struct {
	service service.PushService
	logger  zerolog.Logger
}

// NewPushHandler constructs a handler instance.
func NewPushHandler(service service.PushService, logger zerolog.Logger) *PushHandler {
	return &PushHandler{
		service: service,
		logger:  logger.With().Str("component", "push_handler").Logger(),
	}
}

// Register binds the push subscription routes.
func (h *PushHandler) Register(router fiber.Router) {
	router.Post("/subscriptions", h.subscribe)
}

func (h *PushHandler) subscribe(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.PushSubscribeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	if err := h.service.Subscribe(ctx, userID, payload); err != nil {
		return sendServiceError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subscription saved", nil)
}
