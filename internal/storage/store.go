package storage

import (
	"context"
	"fmt"
	"time"

	"photovault/internal/config"
)

// Store is a single-bucket object store addressed by key.
type Store interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	Sign(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, objectPaths []string) error
	EnsureBucket(ctx context.Context) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinioStore(cfg)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
