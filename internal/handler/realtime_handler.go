package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/middleware"
	"github.com/noah-isme/elimu-api/internal/service"
	"github.com/noah-isme/elimu-api/internal/utils"
)

// RealtimeHandler wires the dashboard websocket and the event publishing endpoint.
type RealtimeHandler struct {
	service service.RealtimeService
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(service service.RealtimeService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// RegisterSocket binds the websocket upgrade under the provided router group.
func (h *RealtimeHandler) RegisterSocket(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c)))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

// RegisterPublisher binds the event publishing endpoint.
func (h *RealtimeHandler) RegisterPublisher(router fiber.Router) {
	router.Post("/events", h.publish)
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(string)
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	role, _ := conn.Locals(middleware.LocalUserRole).(string)
	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.RealtimeConnectionOptions{
		UserID:        userID,
		Role:          role,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", userID).Str("role", role).Msg("realtime websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", userID).Msg("realtime websocket disconnected")
}

func (h *RealtimeHandler) publish(c *fiber.Ctx) error {
	var req dto.RosterEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.Publish(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, service.ErrRealtimeInvalidEvent) {
			return utils.SendErrorDetail(c, fiber.StatusBadRequest, "invalid event", err)
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to publish realtime event")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to publish event")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "event published", message)
}
