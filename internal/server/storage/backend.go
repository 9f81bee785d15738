// Package storage holds the storage backends that keep file bytes: a local
// directory tree and an S3-compatible object store. Exactly one backend is
// active per process; it is chosen once at startup by New.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Mode names a backend kind.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// PresignTTL is how long a RedirectURL stays valid.
const PresignTTL = time.Hour

// Backend stores and serves file bytes. Implementations are safe for
// concurrent use and immutable after construction.
type Backend interface {
	// Put writes src under Locator(ownerID, uniqueName) and returns that
	// locator. An existing object is never overwritten. Errors wrap
	// common.ErrStorageWrite.
	Put(ctx context.Context, ownerID int64, uniqueName string, src io.Reader, size int64, contentType string) (string, error)

	// FetchPlan tells the caller how to serve the object at locator.
	// Backends that hand out URLs attach obj to the response headers.
	FetchPlan(ctx context.Context, locator string, obj ObjectInfo) (FetchPlan, error)

	// Delete removes the object. Failures are logged and reported as false.
	Delete(ctx context.Context, locator string) bool

	Mode() Mode
}

// ObjectInfo is what a download advertises about the object.
type ObjectInfo struct {
	Filename    string
	ContentType string
}

// FetchPlan is either DirectBytes or RedirectURL. Callers must switch on
// the concrete type.
type FetchPlan interface {
	fetchPlan()
}

// DirectBytes streams the object through the server. The receiver must
// close Body.
type DirectBytes struct {
	Body io.ReadCloser
	Size int64
}

// RedirectURL sends the client to a time-limited URL instead.
type RedirectURL struct {
	URL       string
	ExpiresAt time.Time
}

func (DirectBytes) fetchPlan() {}
func (RedirectURL) fetchPlan() {}

// Locator builds the backend-neutral address of an object.
func Locator(ownerID int64, uniqueName string) string {
	return fmt.Sprintf("user_%d/%s", ownerID, uniqueName)
}

var errBadName = errors.New("invalid object name")

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", errBadName, name)
	}
	return nil
}

// validateLocator rejects anything that could address an object outside the
// backend root.
func validateLocator(locator string) error {
	if locator == "" || strings.HasPrefix(locator, "/") || strings.Contains(locator, `\`) {
		return fmt.Errorf("%w: %q", errBadName, locator)
	}
	if path.Clean(locator) != locator {
		return fmt.Errorf("%w: %q", errBadName, locator)
	}
	for _, part := range strings.Split(locator, "/") {
		if part == ".." {
			return fmt.Errorf("%w: %q", errBadName, locator)
		}
	}
	return nil
}
