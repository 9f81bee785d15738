package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/config"
	"github.com/dmitrijs2005/filehost/internal/server/metrics"
)

// Init is the outcome of backend selection. Requested is the configured mode
// string; Backend.Mode() may differ when the remote backend was unusable.
type Init struct {
	Backend   Backend
	Requested string
	Warnings  []string
}

// Downgraded reports whether a different backend than requested is active.
func (i *Init) Downgraded() bool {
	return string(i.Backend.Mode()) != i.Requested
}

// New selects the storage backend for cfg. A broken remote configuration
// never stops the server: it is reported in Warnings and the local backend is
// used instead. Only a local root that cannot be created is fatal.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Init, error) {
	logger = logger.With("module", "storage")
	res := &Init{Requested: cfg.StorageMode}

	warn := func(msg string, args ...any) {
		w := fmt.Sprintf(msg, args...)
		res.Warnings = append(res.Warnings, w)
		logger.Warn(ctx, w)
	}

	switch Mode(cfg.StorageMode) {
	case ModeRemote:
		remote, err := NewRemote(ctx, RemoteConfig{
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			UsePathStyle: cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			warn("remote storage unavailable, falling back to local: %v", err)
			break
		}
		if err := remote.EnsureBucket(ctx); err != nil {
			warn("could not verify bucket %q: %v", cfg.S3Bucket, err)
		}
		res.Backend = remote
	case ModeLocal:
	default:
		warn("unknown storage mode %q, using local", cfg.StorageMode)
	}

	if res.Backend == nil {
		local, err := NewLocal(cfg.UploadFolder, logger)
		if err != nil {
			return nil, err
		}
		res.Backend = local
	}

	metrics.SetStorageMode(string(res.Backend.Mode()))
	logger.Info(ctx, "storage initialised", "mode", string(res.Backend.Mode()), "requested", cfg.StorageMode)
	return res, nil
}
