package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/filex"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/metrics"
)

// LocalBackend keeps objects under a root directory, one subdirectory per owner.
type LocalBackend struct {
	root   string
	logger logging.Logger
}

// NewLocal creates root if missing and returns a backend rooted there.
func NewLocal(root string, logger logging.Logger) (*LocalBackend, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("upload folder: %w", err)
	}
	return &LocalBackend{root: abs, logger: logger.With("backend", string(ModeLocal))}, nil
}

func (b *LocalBackend) Mode() Mode { return ModeLocal }

// Root returns the absolute root directory.
func (b *LocalBackend) Root() string { return b.root }

func (b *LocalBackend) fullPath(locator string) (string, error) {
	if err := validateLocator(locator); err != nil {
		return "", err
	}
	p, ok := filex.WithinRoot(b.root, locator)
	if !ok {
		return "", fmt.Errorf("%w: %q escapes root", errBadName, locator)
	}
	return p, nil
}

// Put writes to a temp file in the target directory, then hard-links it into
// place so an existing object is never replaced.
func (b *LocalBackend) Put(ctx context.Context, ownerID int64, uniqueName string, src io.Reader, size int64, _ string) (locator string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(string(ModeLocal), "put", time.Since(start), err == nil) }()

	if err := validateName(uniqueName); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
	}
	locator = Locator(ownerID, uniqueName)
	path, err := b.fullPath(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create dir for %s: %w", common.ErrStorageWrite, locator, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp for %s: %w", common.ErrStorageWrite, locator, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: src}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: write %s: %w", common.ErrStorageWrite, locator, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp for %s: %w", common.ErrStorageWrite, locator, err)
	}

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s already exists", common.ErrStorageWrite, locator)
		}
		return "", fmt.Errorf("%w: link %s: %w", common.ErrStorageWrite, locator, err)
	}

	b.logger.Debug(ctx, "object stored", "locator", locator, "size", size)
	return locator, nil
}

// FetchPlan opens the object for streaming.
func (b *LocalBackend) FetchPlan(ctx context.Context, locator string, _ ObjectInfo) (FetchPlan, error) {
	path, err := b.fullPath(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageRead, err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", locator, common.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageRead, locator, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %w", common.ErrStorageRead, locator, err)
	}

	return DirectBytes{Body: f, Size: info.Size()}, nil
}

func (b *LocalBackend) Delete(ctx context.Context, locator string) bool {
	path, err := b.fullPath(locator)
	if err != nil {
		b.logger.Warn(ctx, "refusing to delete object", "locator", locator, "error", err)
		return false
	}
	if err := os.Remove(path); err != nil {
		b.logger.Warn(ctx, "delete object failed", "locator", locator, "error", err)
		return false
	}
	return true
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
