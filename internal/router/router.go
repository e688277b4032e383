package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/modu-office/modu-api/internal/config"
	"github.com/modu-office/modu-api/internal/handler"
	"github.com/modu-office/modu-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RoomHandler         *handler.RoomHandler
	PostHandler         *handler.PostHandler
	NotificationHandler *handler.NotificationHandler
	PushHandler         *handler.PushHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Messaging (channels, rooms, posts)
	if deps.RoomHandler != nil || deps.PostHandler != nil {
		messaging := app.Group("/api/v2/messaging", jwtMiddleware)

		if deps.RoomHandler != nil {
			deps.RoomHandler.Register(messaging)
		}
		if deps.PostHandler != nil {
			deps.PostHandler.Register(messaging)
		}
	}

	// Notifications (feed, SSE stream, internal publish)
	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v2/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	// Web push subscriptions
	if deps.PushHandler != nil {
		push := app.Group("/api/v2/push", jwtMiddleware)
		deps.PushHandler.Register(push)
	}
}
