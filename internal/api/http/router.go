package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thread-service/internal/api/http/handlers"
	"github.com/spec-kit/thread-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Threads        *handlers.ThreadsHandler
	Messages       *handlers.MessagesHandler
	Presence       *handlers.PresenceHandler
	Devices        *handlers.DevicesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("", cfg.AuthMiddleware.Handle)

	api.Post("/threads", cfg.Threads.CreateThread)
	api.Get("/threads", cfg.Threads.ListThreads)
	api.Patch("/threads/:id/status", cfg.Threads.UpdateStatus)
	api.Delete("/threads/:id", cfg.Threads.DeleteThread)

	api.Get("/threads/:id/messages", cfg.Threads.GetTimeline)
	api.Post("/threads/:id/messages", cfg.Messages.PostMessage)
	api.Post("/threads/:id/read", cfg.Messages.MarkRead)
	api.Put("/messages/:id/reactions", cfg.Messages.AddReaction)
	api.Delete("/messages/:id/reactions", cfg.Messages.RemoveReaction)

	api.Put("/threads/:id/typing", cfg.Presence.SetTyping)
	api.Delete("/threads/:id/typing", cfg.Presence.ClearTyping)
	api.Get("/threads/:id/typing", cfg.Presence.GetTypers)

	api.Post("/devices", cfg.Devices.RegisterDevice)
}
