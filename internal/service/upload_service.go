package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/observability"
	"github.com/noah-isme/elimu-api/pkg/cloudinary"
)

var (
	// ErrUploadNotConfigured indicates the media host has no credentials.
	ErrUploadNotConfigured = errors.New("upload service not configured")
	// ErrUploadMissingFile indicates the request carried no file.
	ErrUploadMissingFile = errors.New("file is required")
	// ErrUploadInvalidRequest indicates the upload options failed validation.
	ErrUploadInvalidRequest = errors.New("invalid upload request")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadScanFailed indicates validation of the file failed.
	ErrUploadScanFailed = errors.New("file scanning failed")
	// ErrUploadAssetOutsideFolder indicates a delete targeted an asset this service did not store.
	ErrUploadAssetOutsideFolder = errors.New("asset is outside the upload folder")
	// ErrUploadAssetNotFound indicates the media host has no such asset.
	ErrUploadAssetNotFound = errors.New("asset not found")
)

// UploadKind selects the validation policy and destination of an upload.
type UploadKind string

// Supported upload kinds.
const (
	UploadKindThumbnail UploadKind = "thumbnail"
	UploadKindVideo     UploadKind = "video"
	UploadKindResource  UploadKind = "resource"
	UploadKindSingle    UploadKind = "single"
)

const megabyte = 1024 * 1024

var (
	imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	videoTypes = []string{"video/mp4", "video/mpeg", "video/quicktime", "video/x-msvideo", "video/x-ms-wmv"}
	fileTypes  = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/zip",
		"application/x-rar-compressed",
		"application/x-7z-compressed",
	}
)

type uploadPolicy struct {
	maxBytes       int64
	allowed        []string
	subfolder      string
	resourceType   string
	transformation string
}

var uploadPolicies = map[UploadKind]uploadPolicy{
	UploadKindThumbnail: {
		maxBytes:       5 * megabyte,
		allowed:        imageTypes,
		subfolder:      "courses/thumbnails",
		resourceType:   "image",
		transformation: "c_fill,h_720,w_1280/q_auto:good",
	},
	UploadKindVideo: {
		maxBytes:     100 * megabyte,
		allowed:      videoTypes,
		subfolder:    "courses/videos",
		resourceType: "video",
	},
	UploadKindResource: {
		maxBytes:     100 * megabyte,
		allowed:      fileTypes,
		subfolder:    "courses/resources",
		resourceType: "raw",
	},
	UploadKindSingle: {
		maxBytes:     100 * megabyte,
		allowed:      append(append(append([]string{}, imageTypes...), videoTypes...), fileTypes...),
		resourceType: "auto",
	},
}

// MediaStorage abstracts the media host.
type MediaStorage interface {
	IsConfigured() bool
	Upload(ctx context.Context, reader io.Reader, opts cloudinary.UploadOptions) (cloudinary.UploadResult, error)
	Delete(ctx context.Context, publicID, resourceType string) error
}

// UploadRequest carries one upload.
type UploadRequest struct {
	Kind   UploadKind            `validate:"required,oneof=thumbnail video resource single"`
	Folder string                `validate:"omitempty,max=120"`
	File   *multipart.FileHeader `validate:"-"`
}

// DeleteRequest removes one stored asset.
type DeleteRequest struct {
	Kind     UploadKind `validate:"required,oneof=thumbnail video resource single"`
	PublicID string     `validate:"required,max=255"`
}

// UploadService validates files and relays them to the media host.
type UploadService interface {
	Upload(ctx context.Context, req UploadRequest) (dto.UploadResponse, error)
	Delete(ctx context.Context, req DeleteRequest) error
}

type uploadService struct {
	storage    MediaStorage
	baseFolder string
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(storage MediaStorage, baseFolder string, validate *validator.Validate, logger zerolog.Logger) UploadService {
	baseFolder = strings.Trim(baseFolder, "/")
	if baseFolder == "" {
		baseFolder = "elimu-space"
	}
	if validate == nil {
		validate = validator.New()
	}
	return &uploadService{
		storage:    storage,
		baseFolder: baseFolder,
		validator:  validate,
		logger:     logger.With().Str("component", "upload_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/elimu-api/internal/service/upload"),
	}
}

func (s *uploadService) Upload(ctx context.Context, req UploadRequest) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store", trace.WithAttributes(
		attribute.String("upload.kind", string(req.Kind)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, fmt.Errorf("%w: %v", ErrUploadInvalidRequest, err)
	}
	policy := uploadPolicies[req.Kind]
	kind := string(req.Kind)

	if req.File == nil {
		span.SetAttributes(attribute.Bool("upload.file_present", false))
		return dto.UploadResponse{}, ErrUploadMissingFile
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(req.File.Filename)),
		attribute.Int64("upload.request_size", req.File.Size),
		attribute.Int64("upload.max_bytes", policy.maxBytes),
	)

	if s.storage == nil || !s.storage.IsConfigured() {
		span.SetStatus(codes.Error, "storage not configured")
		return dto.UploadResponse{}, ErrUploadNotConfigured
	}

	if req.File.Size > policy.maxBytes {
		return dto.UploadResponse{}, s.reject(span, kind, "size", ErrUploadTooLarge)
	}

	handle, err := req.File.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, policy.maxBytes+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > policy.maxBytes {
		return dto.UploadResponse{}, s.reject(span, kind, "size", ErrUploadTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType, ok := matchMime(detected, policy.allowed)
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !ok {
		return dto.UploadResponse{}, s.reject(span, kind, "type", ErrUploadTypeNotAllowed)
	}

	if err := scanArchive(buf.Bytes(), fileType, policy.maxBytes); err != nil {
		return dto.UploadResponse{}, s.reject(span, kind, "scan", err)
	}

	sanitizedName := sanitizeFileName(req.File.Filename)
	result, err := s.storage.Upload(ctx, bytes.NewReader(buf.Bytes()), cloudinary.UploadOptions{
		Folder:         s.folderFor(policy, req.Folder),
		FileName:       sanitizedName,
		ResourceType:   policy.resourceType,
		Transformation: policy.transformation,
	})
	if err != nil {
		observability.UploadRejected().WithLabelValues(kind, "storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		s.logger.Error().Err(err).Str("kind", kind).Msg("media host rejected upload")
		return dto.UploadResponse{}, err
	}

	observability.Uploads().WithLabelValues(kind).Inc()
	span.SetStatus(codes.Ok, "stored")

	size := result.Bytes
	if size == 0 {
		size = buf.Len()
	}
	response := dto.UploadResponse{
		URL:      result.URL,
		PublicID: result.PublicID,
		Format:   result.Format,
		Size:     size,
		Width:    result.Width,
		Height:   result.Height,
		MimeType: fileType,
	}
	if req.Kind == UploadKindResource {
		response.FileName = strings.TrimSpace(req.File.Filename)
	}
	return response, nil
}

// Delete removes an asset stored by this service. Only public ids under the
// base folder are accepted.
func (s *uploadService) Delete(ctx context.Context, req DeleteRequest) error {
	req.PublicID = strings.Trim(strings.TrimSpace(req.PublicID), "/")
	ctx, span := s.tracer.Start(ctx, "upload.delete", trace.WithAttributes(
		attribute.String("upload.kind", string(req.Kind)),
		attribute.String("upload.public_id", req.PublicID),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrUploadInvalidRequest, err)
	}
	if s.storage == nil || !s.storage.IsConfigured() {
		return ErrUploadNotConfigured
	}

	cleaned := path.Clean(req.PublicID)
	if cleaned != req.PublicID || !strings.HasPrefix(cleaned, s.baseFolder+"/") {
		span.SetStatus(codes.Error, "outside folder")
		return ErrUploadAssetOutsideFolder
	}

	resourceType := uploadPolicies[req.Kind].resourceType
	if resourceType == "auto" {
		resourceType = ""
	}

	if err := s.storage.Delete(ctx, cleaned, resourceType); err != nil {
		if errors.Is(err, cloudinary.ErrAssetNotFound) {
			return ErrUploadAssetNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		s.logger.Error().Err(err).Str("public_id", cleaned).Msg("media host rejected delete")
		return err
	}

	span.SetStatus(codes.Ok, "deleted")
	return nil
}

func (s *uploadService) reject(span trace.Span, kind, reason string, err error) error {
	observability.UploadRejected().WithLabelValues(kind, reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "rejected: "+reason)
	return err
}

// folderFor places kind-specific uploads under the base folder. Generic uploads
// may name a folder of their own.
func (s *uploadService) folderFor(policy uploadPolicy, requested string) string {
	if policy.subfolder != "" {
		return path.Join(s.baseFolder, policy.subfolder)
	}
	if folder := sanitizeFolder(requested); folder != "" {
		return folder
	}
	return s.baseFolder
}

func matchMime(detected *mimetype.MIME, allowed []string) (string, bool) {
	for _, candidate := range allowed {
		if detected.Is(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func scanArchive(payload []byte, mime string, maxBytes int64) error {
	if mime != "application/zip" {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(maxBytes*20) {
			return fmt.Errorf("zip archive uncompressed size too large: %w", ErrUploadScanFailed)
		}
	}
	return nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func sanitizeFolder(folder string) string {
	parts := strings.Split(strings.ToLower(folder), "/")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return -1
		}, part)
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, "/")
}
