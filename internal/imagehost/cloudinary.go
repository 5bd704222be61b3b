// ABOUTME: Cloudinary implementation of the image Host
// ABOUTME: Credentials are fixed at construction rather than read per call

package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryConfig holds account credentials.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// CloudinaryHost uploads images to a Cloudinary account.
type CloudinaryHost struct {
	cld *cloudinary.Cloudinary
}

var _ Host = (*CloudinaryHost)(nil)

// NewCloudinaryHost creates a client for the given account.
func NewCloudinaryHost(cfg CloudinaryConfig) (*CloudinaryHost, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary: cloud name, api key and api secret are required")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryHost{cld: cld}, nil
}

// Upload stores data as an image under opts.PublicID without overwriting.
func (h *CloudinaryHost) Upload(ctx context.Context, data []byte, opts UploadOptions) (*Asset, error) {
	res, err := h.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     opts.PublicID,
		ResourceType: "image",
		Overwrite:    api.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload %s: %w", opts.PublicID, err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload %s: %s", opts.PublicID, res.Error.Message)
	}
	return &Asset{URL: res.SecureURL, ID: res.PublicID}, nil
}

// Destroy removes an asset and invalidates CDN copies.
func (h *CloudinaryHost) Destroy(ctx context.Context, assetID string) error {
	res, err := h.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   assetID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", assetID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", assetID, res.Error.Message)
	}
	if res.Result != "ok" {
		return fmt.Errorf("cloudinary destroy %s: result %q", assetID, res.Result)
	}
	return nil
}
