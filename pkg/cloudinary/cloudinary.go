package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned when credentials were not supplied.
	ErrNotConfigured = errors.New("cloudinary is not configured")
	// ErrAssetNotFound is returned when Cloudinary has no asset with the public id.
	ErrAssetNotFound = errors.New("cloudinary asset not found")
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// UploadOptions controls where and how an asset is stored.
type UploadOptions struct {
	Folder         string
	FileName       string
	ResourceType   string
	Transformation string
}

// UploadResult describes a stored asset.
type UploadResult struct {
	URL          string
	PublicID     string
	Format       string
	ResourceType string
	Bytes        int
	Width        int
	Height       int
}

// Service stores media on Cloudinary. A Service built without credentials
// reports IsConfigured false and refuses uploads.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	svc := &Service{
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}

	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		svc.logger.Warn().Msg("cloudinary credentials missing, uploads disabled")
		return svc, nil
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	svc.client = cld

	return svc, nil
}

// IsConfigured reports whether uploads can be served.
func (s *Service) IsConfigured() bool {
	return s != nil && s.client != nil
}

// Upload sends the asset to Cloudinary.
func (s *Service) Upload(ctx context.Context, reader io.Reader, opts UploadOptions) (UploadResult, error) {
	if !s.IsConfigured() {
		return UploadResult{}, ErrNotConfigured
	}

	folder := strings.Trim(opts.Folder, "/")
	if folder == "" {
		folder = s.folder
	}
	resourceType := opts.ResourceType
	if resourceType == "" {
		resourceType = "auto"
	}

	params := uploader.UploadParams{
		Folder:         folder,
		PublicID:       buildPublicID(opts.FileName),
		ResourceType:   resourceType,
		Transformation: opts.Transformation,
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return UploadResult{}, fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("resource_type", result.ResourceType).
		Int("bytes", result.Bytes).
		Msg("asset uploaded to cloudinary")

	return UploadResult{
		URL:          result.SecureURL,
		PublicID:     result.PublicID,
		Format:       result.Format,
		ResourceType: result.ResourceType,
		Bytes:        result.Bytes,
		Width:        result.Width,
		Height:       result.Height,
	}, nil
}

// Delete removes an asset by public id.
func (s *Service) Delete(ctx context.Context, publicID, resourceType string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if resourceType == "" {
		resourceType = "image"
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to delete asset: %s", result.Error.Message)
	}
	if result.Result == "not found" {
		return ErrAssetNotFound
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("asset deleted from cloudinary")
	return nil
}

func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	return fmt.Sprintf("%s-%d", base, time.Now().UnixNano())
}
