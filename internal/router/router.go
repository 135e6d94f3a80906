package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/elimu-api/internal/config"
	"github.com/noah-isme/elimu-api/internal/handler"
	"github.com/noah-isme/elimu-api/internal/middleware"
	"github.com/noah-isme/elimu-api/internal/observability"
	"github.com/noah-isme/elimu-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RosterHandler   *handler.RosterHandler
	UploadHandler   *handler.UploadHandler
	RealtimeHandler *handler.RealtimeHandler
	HealthChecks    []handler.Dependency
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	staff := middleware.RequireRole(middleware.RoleInstructor, middleware.RoleAdmin)

	// Instructor roster
	if deps.RosterHandler != nil || deps.UploadHandler != nil {
		instructor := api.Group("/instructor", jwtMiddleware, staff)
		if deps.RosterHandler != nil {
			deps.RosterHandler.Register(instructor, middleware.RateLimit("roster-export", cfg.ExportRatePerMinute, time.Minute))
		}
		if deps.UploadHandler != nil {
			instructor.Post("/thumbnail", deps.UploadHandler.Handle(service.UploadKindThumbnail))
		}
	}

	// Media uploads
	if deps.UploadHandler != nil {
		upload := api.Group("/upload", jwtMiddleware, middleware.RequireUser())
		deps.UploadHandler.Register(upload, staff)
	}

	// Dashboard realtime relay
	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.RegisterSocket(api.Group("/realtime", jwtMiddleware))
		deps.RealtimeHandler.RegisterPublisher(api.Group("/admin/realtime", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin)))
	}
}
