// ABOUTME: S3-compatible object storage implementation of the image Host
// ABOUTME: Stores photos as objects in one bucket behind a public base URL

package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds connection settings for an S3-compatible endpoint.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL is the base URL objects are served from.
	PublicURL string
	UseSSL    bool
}

// MinIOHost stores images in an S3-compatible bucket.
type MinIOHost struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

var _ Host = (*MinIOHost)(nil)

// NewMinIOHost creates a client for the configured endpoint and bucket.
func NewMinIOHost(cfg MinIOConfig) (*MinIOHost, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinIOHost{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload puts the object at opts.PublicID plus the filename's extension.
func (h *MinIOHost) Upload(ctx context.Context, data []byte, opts UploadOptions) (*Asset, error) {
	key := opts.PublicID + strings.ToLower(path.Ext(opts.Filename))
	contentType := opts.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	_, err := h.client.PutObject(ctx, h.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("minio upload %s: %w", key, err)
	}
	return &Asset{URL: h.publicURL + "/" + key, ID: key}, nil
}

// Destroy removes the object.
func (h *MinIOHost) Destroy(ctx context.Context, assetID string) error {
	if err := h.client.RemoveObject(ctx, h.bucket, assetID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio destroy %s: %w", assetID, err)
	}
	return nil
}
