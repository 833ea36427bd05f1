package core

import (
	"context"
	"fmt"

	"procurecore/internal/config"
	"procurecore/internal/infra/persistence/file"
	"procurecore/internal/infra/persistence/postgres"
	"procurecore/internal/infra/persistence/s3"
	"procurecore/internal/infra/persistence/sqlite"
	"procurecore/internal/store"
)

// OpenSink constructs the write-through sink selected by cfg. The none
// driver yields a nil sink. The returned close func is never nil.
func OpenSink(ctx context.Context, cfg config.Config) (store.Sink, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StorageDriver {
	case config.StorageNone, "":
		return nil, noop, nil
	case config.StorageFile:
		sink, err := file.New(cfg.FileDir)
		if err != nil {
			return nil, noop, err
		}
		return sink, noop, nil
	case config.StorageSQLite:
		sink, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return sink, sink.Close, nil
	case config.StoragePostgres:
		sink, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return sink, sink.Close, nil
	case config.StorageS3:
		sink, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, noop, err
		}
		return sink, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}

// OpenStore builds the store for cfg, loading any persisted state from the
// selected sink.
func OpenStore(ctx context.Context, cfg config.Config, logger store.Logger) (*store.Store, func() error, error) {
	sink, closeFn, err := OpenSink(ctx, cfg)
	if err != nil {
		return nil, closeFn, fmt.Errorf("open %s sink: %w", cfg.StorageDriver, err)
	}
	opts := []store.Option{store.WithLogger(logger)}
	if sink != nil {
		opts = append(opts, store.WithSink(sink))
	}
	return store.New(ctx, opts...), closeFn, nil
}
