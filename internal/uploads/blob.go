package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hugh/go-equip/pkg/config"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds opaque (already encrypted) upload bodies keyed by storage key.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewBlobStore builds the backend named by cfg.Provider.
func NewBlobStore(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	switch cfg.Provider {
	case "", "memory":
		logger.Warn("using in-memory blob store; uploads are lost on restart")
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "gcs":
		return NewGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
