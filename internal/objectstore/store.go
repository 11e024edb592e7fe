package objectstore

import (
	"context"
	"mime"
	"path/filepath"

	"github.com/kubev2v/document-extractor/internal/config"
)

const defaultContentType = "application/octet-stream"

// Uploader persists a local file in a bucket so that it can be read by the
// document analysis service.
type Uploader interface {
	Upload(ctx context.Context, localPath, bucket, key string) error
	Type() string
}

// New returns the uploader matching the configured backend.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	if cfg.Storage.Backend == config.BackendMinio {
		store, err := NewMinioStore(
			WithEndpoint(cfg.Storage.Endpoint),
			WithAccessKey(cfg.Storage.AccessKey),
			WithSecretKey(cfg.Storage.SecretKey),
			WithSSL(cfg.Storage.UseSSL),
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := NewS3Store(ctx, cfg.AWS.Region, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func contentType(key string) string {
	if t := mime.TypeByExtension(filepath.Ext(key)); t != "" {
		return t
	}
	return defaultContentType
}
