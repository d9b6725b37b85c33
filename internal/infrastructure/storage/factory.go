package storage

import (
	"context"
	"fmt"

	"read-aloud-api/internal/config"
)

// New builds the artifact store selected by configuration.
func New(ctx context.Context, cfg *config.StorageConfig) (ArtifactStore, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, &cfg.S3)
	case "local", "":
		return NewLocalStore(&cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
