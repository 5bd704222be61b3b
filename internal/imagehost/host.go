// ABOUTME: Image hosting contract and adapter selection
// ABOUTME: Uploads photo bytes for an entry and destroys assets when entries are removed

package imagehost

import (
	"context"
	"errors"
	"fmt"
)

// ErrDisabled is returned by uploads when no image host is configured.
var ErrDisabled = errors.New("image hosting disabled")

// UploadOptions describe the asset being uploaded.
type UploadOptions struct {
	// PublicID is the requested asset id, including any folder prefix.
	PublicID    string
	Filename    string
	ContentType string
}

// Asset is an uploaded image.
type Asset struct {
	URL string
	// ID is the opaque identifier used to destroy the asset later.
	ID string
}

// Host uploads and destroys image assets.
type Host interface {
	Upload(ctx context.Context, data []byte, opts UploadOptions) (*Asset, error)
	Destroy(ctx context.Context, assetID string) error
}

// Config selects and configures an adapter.
type Config struct {
	// Provider is "cloudinary", "minio" or "none".
	Provider   string
	Cloudinary CloudinaryConfig
	MinIO      MinIOConfig
}

// New builds the Host named by cfg.Provider.
func New(cfg Config) (Host, error) {
	switch cfg.Provider {
	case "cloudinary":
		return NewCloudinaryHost(cfg.Cloudinary)
	case "minio":
		return NewMinIOHost(cfg.MinIO)
	case "", "none":
		return NoopHost{}, nil
	default:
		return nil, fmt.Errorf("unknown image host: %q", cfg.Provider)
	}
}

// NoopHost refuses uploads and ignores destroys.
type NoopHost struct{}

func (NoopHost) Upload(ctx context.Context, data []byte, opts UploadOptions) (*Asset, error) {
	return nil, ErrDisabled
}

func (NoopHost) Destroy(ctx context.Context, assetID string) error {
	return nil
}
