package handler_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/handler"
	"github.com/noah-isme/elimu-api/internal/service"
)

type mockUploadService struct {
	last       service.UploadRequest
	lastDelete service.DeleteRequest
	calls      int
	response   dto.UploadResponse
	err        error
}

func (m *mockUploadService) Delete(_ context.Context, req service.DeleteRequest) error {
	m.calls++
	m.lastDelete = req
	return m.err
}

func (m *mockUploadService) Upload(_ context.Context, req service.UploadRequest) (dto.UploadResponse, error) {
	m.calls++
	m.last = req
	if req.File != nil {
		if _, err := req.File.Open(); err != nil {
			return dto.UploadResponse{}, err
		}
	}
	if m.err != nil {
		return dto.UploadResponse{}, m.err
	}
	return m.response, nil
}

func newUploadApp(svc service.UploadService, policy handler.ErrorPolicy, guards ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handler.NewUploadHandler(svc, policy, zerolog.New(io.Discard)).Register(app.Group("/api/v1/upload"), guards...)
	return app
}

func multipartRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadHandler_ThumbnailSuccess(t *testing.T) {
	svc := &mockUploadService{response: dto.UploadResponse{URL: "https://cdn.example.com/thumb.png", PublicID: "courses/thumbnails/thumb", Size: 123, MimeType: "image/png"}}
	app := newUploadApp(svc, handler.ErrorPolicy{})

	resp, err := app.Test(multipartRequest(t, "/api/v1/upload/thumbnail", "thumb.png", []byte("png"), nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, service.UploadKindThumbnail, svc.last.Kind)
	require.Equal(t, "thumb.png", svc.last.File.Filename)

	var payload struct {
		Success bool               `json:"success"`
		Data    dto.UploadResponse `json:"data"`
	}
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, "https://cdn.example.com/thumb.png", payload.Data.URL)
}

func TestUploadHandler_SinglePassesFolder(t *testing.T) {
	svc := &mockUploadService{}
	app := newUploadApp(svc, handler.ErrorPolicy{})

	resp, err := app.Test(multipartRequest(t, "/api/v1/upload/single", "avatar.png", []byte("png"), map[string]string{"folder": "avatars"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, service.UploadKindSingle, svc.last.Kind)
	require.Equal(t, "avatars", svc.last.Folder)
}

func TestUploadHandler_MissingFile(t *testing.T) {
	svc := &mockUploadService{}
	app := newUploadApp(svc, handler.ErrorPolicy{})

	resp, err := app.Test(multipartRequest(t, "/api/v1/upload/video", "", nil, map[string]string{"note": "x"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Zero(t, svc.calls)

	var payload map[string]interface{}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "No video file provided", payload["message"])
}

func TestUploadHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		err     error
		status  int
		message string
	}{
		{"not configured", "/api/v1/upload/single", service.ErrUploadNotConfigured, fiber.StatusInternalServerError, "File upload service not configured. Please contact administrator."},
		{"too large", "/api/v1/upload/video", service.ErrUploadTooLarge, fiber.StatusRequestEntityTooLarge, "File too large"},
		{"bad type thumbnail", "/api/v1/upload/thumbnail", service.ErrUploadTypeNotAllowed, fiber.StatusBadRequest, "Only image files (jpg, png, gif, webp) are allowed for thumbnails"},
		{"bad type resource", "/api/v1/upload/resource", service.ErrUploadTypeNotAllowed, fiber.StatusBadRequest, "Invalid file type for course resources"},
		{"scan failed", "/api/v1/upload/resource", service.ErrUploadScanFailed, fiber.StatusBadRequest, "Invalid file type for course resources"},
		{"storage failure", "/api/v1/upload/video", errors.New("cloudinary down"), fiber.StatusInternalServerError, "Video upload failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newUploadApp(&mockUploadService{err: tc.err}, handler.ErrorPolicy{})

			resp, err := app.Test(multipartRequest(t, tc.path, "file.bin", []byte("data"), nil), -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var payload map[string]interface{}
			decodeResponse(t, resp, &payload)
			require.Equal(t, false, payload["success"])
			require.Equal(t, tc.message, payload["message"])
		})
	}
}

func TestUploadHandler_StorageFailureDetail(t *testing.T) {
	app := newUploadApp(&mockUploadService{err: errors.New("cloudinary down")}, handler.ErrorPolicy{ExposeDetails: true})

	resp, err := app.Test(multipartRequest(t, "/api/v1/upload/single", "file.png", []byte("data"), nil), -1)
	require.NoError(t, err)

	var payload map[string]interface{}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "Upload failed", payload["message"])
	require.Equal(t, "cloudinary down", payload["error"])
}

func TestUploadHandler_StaffGuardsSkipSingle(t *testing.T) {
	deny := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusForbidden)
	}
	svc := &mockUploadService{}
	app := newUploadApp(svc, handler.ErrorPolicy{}, deny)

	resp, err := app.Test(multipartRequest(t, "/api/v1/upload/resource", "notes.pdf", []byte("%PDF"), nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(multipartRequest(t, "/api/v1/upload/single", "notes.pdf", []byte("%PDF"), nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 1, svc.calls)
}

func TestUploadHandler_Delete(t *testing.T) {
	svc := &mockUploadService{}
	app := newUploadApp(svc, handler.ErrorPolicy{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/upload/video?publicId=elimu-space/courses/videos/intro", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, service.DeleteRequest{Kind: service.UploadKindVideo, PublicID: "elimu-space/courses/videos/intro"}, svc.lastDelete)

	var payload map[string]interface{}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "File deleted", payload["message"])
}

func TestUploadHandler_DeleteErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrUploadInvalidRequest, fiber.StatusBadRequest},
		{service.ErrUploadAssetOutsideFolder, fiber.StatusForbidden},
		{service.ErrUploadAssetNotFound, fiber.StatusNotFound},
		{service.ErrUploadNotConfigured, fiber.StatusInternalServerError},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := newUploadApp(&mockUploadService{err: tc.err}, handler.ErrorPolicy{})
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/upload/resource?publicId=x", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
		_ = resp.Body.Close()
	}
}
