package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/elimu-api/internal/service"
	"github.com/noah-isme/elimu-api/internal/utils"
)

type uploadMessages struct {
	missing string
	invalid string
	failed  string
}

var uploadMessagesByKind = map[service.UploadKind]uploadMessages{
	service.UploadKindSingle:    {missing: "No file provided", invalid: "Invalid file type", failed: "Upload failed"},
	service.UploadKindThumbnail: {missing: "No thumbnail image provided", invalid: "Only image files (jpg, png, gif, webp) are allowed for thumbnails", failed: "Thumbnail upload failed"},
	service.UploadKindVideo:     {missing: "No video file provided", invalid: "Only video files are allowed", failed: "Video upload failed"},
	service.UploadKindResource:  {missing: "No file provided", invalid: "Invalid file type for course resources", failed: "Resource upload failed"},
}

// UploadHandler relays multipart uploads to the media host.
type UploadHandler struct {
	service service.UploadService
	errors  ErrorPolicy
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, policy ErrorPolicy, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		errors:  policy,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires the kind specific upload routes. staffGuards run in front of
// the thumbnail, video and resource routes and of deletes.
func (h *UploadHandler) Register(router fiber.Router, staffGuards ...fiber.Handler) {
	router.Post("/single", h.Handle(service.UploadKindSingle))
	for _, kind := range []service.UploadKind{service.UploadKindThumbnail, service.UploadKindVideo, service.UploadKindResource} {
		handlers := append(append([]fiber.Handler{}, staffGuards...), h.Handle(kind))
		router.Post("/"+string(kind), handlers...)
	}
	router.Delete("/:kind", append(append([]fiber.Handler{}, staffGuards...), h.delete)...)
}

// Handle returns the upload endpoint for one kind.
func (h *UploadHandler) Handle(kind service.UploadKind) fiber.Handler {
	messages := uploadMessagesByKind[kind]

	return func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, messages.missing)
		}

		result, err := h.service.Upload(c.UserContext(), service.UploadRequest{
			Kind:   kind,
			Folder: c.FormValue("folder"),
			File:   file,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUploadMissingFile):
				return utils.SendError(c, fiber.StatusBadRequest, messages.missing)
			case errors.Is(err, service.ErrUploadNotConfigured):
				return utils.SendError(c, fiber.StatusInternalServerError, "File upload service not configured. Please contact administrator.")
			case errors.Is(err, service.ErrUploadTooLarge):
				return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "File too large")
			case errors.Is(err, service.ErrUploadTypeNotAllowed):
				return utils.SendError(c, fiber.StatusBadRequest, messages.invalid)
			case errors.Is(err, service.ErrUploadScanFailed), errors.Is(err, service.ErrUploadInvalidRequest):
				return utils.SendErrorDetail(c, fiber.StatusBadRequest, messages.invalid, err)
			default:
				requestLogger(h.logger, c).Error().Err(err).Str("kind", string(kind)).Msg("upload failed")
				return utils.SendErrorDetail(c, fiber.StatusInternalServerError, messages.failed, h.errors.detail(err))
			}
		}

		return c.Status(fiber.StatusOK).JSON(utils.APIResponse{Success: true, Data: result})
	}
}

func (h *UploadHandler) delete(c *fiber.Ctx) error {
	err := h.service.Delete(c.UserContext(), service.DeleteRequest{
		Kind:     service.UploadKind(c.Params("kind")),
		PublicID: c.Query("publicId"),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadInvalidRequest):
			return utils.SendErrorDetail(c, fiber.StatusBadRequest, "Invalid delete request", err)
		case errors.Is(err, service.ErrUploadNotConfigured):
			return utils.SendError(c, fiber.StatusInternalServerError, "File upload service not configured. Please contact administrator.")
		case errors.Is(err, service.ErrUploadAssetOutsideFolder):
			return utils.SendError(c, fiber.StatusForbidden, "File cannot be deleted")
		case errors.Is(err, service.ErrUploadAssetNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "File not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("kind", c.Params("kind")).Msg("delete failed")
			return utils.SendErrorDetail(c, fiber.StatusInternalServerError, "Delete failed", h.errors.detail(err))
		}
	}

	return utils.SendSuccess(c, "File deleted", nil)
}
