package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/middleware"
	"github.com/noah-isme/elimu-api/internal/service"
	"github.com/noah-isme/elimu-api/internal/utils"
)

// RosterHandler exposes the instructor student roster.
type RosterHandler struct {
	service service.RosterService
	errors  ErrorPolicy
	logger  zerolog.Logger
}

// NewRosterHandler constructs the roster handler.
func NewRosterHandler(service service.RosterService, policy ErrorPolicy, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		service: service,
		errors:  policy,
		logger:  logger.With().Str("component", "roster_handler").Logger(),
	}
}

// Register attaches roster routes. exportGuards run in front of the CSV export.
func (h *RosterHandler) Register(router fiber.Router, exportGuards ...fiber.Handler) {
	router.Get("/students", h.list)
	router.Get("/students/export", append(exportGuards, h.export)...)
	router.Get("/students/:studentId", h.detail)
}

func (h *RosterHandler) list(c *fiber.Ctx) error {
	req := dto.RosterListRequest{
		Page:   lenientQueryInt(c, "page"),
		Limit:  lenientQueryInt(c, "limit"),
		Search: c.Query("search"),
		Status: c.Query("status"),
	}

	response, err := h.service.List(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			return utils.SendError(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch students")
		return utils.SendErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch students", h.errors.detail(err))
	}

	return utils.SendPage(c, response.Items, response.Pagination)
}

func (h *RosterHandler) detail(c *fiber.Ctx) error {
	detail, err := h.service.Detail(c.UserContext(), middleware.UserID(c), c.Params("studentId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthenticated):
			return utils.SendError(c, fiber.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, service.ErrInvalidStudentID):
			return utils.SendError(c, fiber.StatusBadRequest, "Invalid student ID")
		case errors.Is(err, service.ErrNoCourses):
			return utils.SendError(c, fiber.StatusNotFound, "No courses found")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "Student not found")
		case errors.Is(err, service.ErrStudentNotEnrolled):
			return utils.SendError(c, fiber.StatusForbidden, "Student not enrolled in your courses")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("student_id", c.Params("studentId")).Msg("failed to fetch student details")
			return utils.SendErrorDetail(c, fiber.StatusInternalServerError, "Failed to fetch student details", h.errors.detail(err))
		}
	}

	return c.Status(fiber.StatusOK).JSON(utils.APIResponse{Success: true, Data: detail})
}

func (h *RosterHandler) export(c *fiber.Ctx) error {
	payload, err := h.service.Export(c.UserContext(), middleware.UserID(c), dto.RosterExportRequest{
		Search: c.Query("search"),
		Status: c.Query("status"),
	})
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			return utils.SendError(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to export students")
		return utils.SendErrorDetail(c, fiber.StatusInternalServerError, "Failed to export students", h.errors.detail(err))
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=students.csv")
	return c.Status(fiber.StatusOK).Send(payload)
}
