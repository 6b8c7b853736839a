package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WaterlinePL/hmse-projects/internal/store"
	storefs "github.com/WaterlinePL/hmse-projects/internal/store/fs"
	storememory "github.com/WaterlinePL/hmse-projects/internal/store/memory"
	stores3 "github.com/WaterlinePL/hmse-projects/internal/store/s3"
)

// OpenStore constructs the configured artifact store backend.
func OpenStore(ctx context.Context, cfg StoreConfig, log *slog.Logger) (store.Store, error) {
	switch store.Driver(cfg.Driver) {
	case store.DriverFilesystem:
		return storefs.New(cfg.FS.Root, log)
	case store.DriverS3:
		return stores3.New(ctx, stores3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		}, log)
	case store.DriverMemory:
		return storememory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
