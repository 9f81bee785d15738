package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/memory"
	"github.com/dmitrijs2005/filehost/internal/server/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

// newTxDB returns a database used only for transaction scopes; the memory
// repositories ignore the handle they are given.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeClock advances by one second on every call, so consecutive uploads
// get distinct stored names.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// frozenClock always returns the same instant.
func frozenClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type redirectBackend struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	lastInfo storage.ObjectInfo
	putErr   error
	planErr  error
}

func newRedirectBackend() *redirectBackend {
	return &redirectBackend{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (b *redirectBackend) Put(_ context.Context, ownerID int64, uniqueName string, src io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
	}
	if b.putErr != nil {
		return "", b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	loc := storage.Locator(ownerID, uniqueName)
	if _, ok := b.objects[loc]; ok {
		return "", fmt.Errorf("%w: exists", common.ErrStorageWrite)
	}
	b.objects[loc] = data
	b.types[loc] = contentType
	return loc, nil
}

func (b *redirectBackend) FetchPlan(_ context.Context, locator string, obj storage.ObjectInfo) (storage.FetchPlan, error) {
	b.mu.Lock()
	b.lastInfo = obj
	b.mu.Unlock()
	if b.planErr != nil {
		return nil, b.planErr
	}
	return storage.RedirectURL{URL: "https://objects.example/" + locator, ExpiresAt: time.Now().Add(storage.PresignTTL)}, nil
}

func (b *redirectBackend) Delete(context.Context, string) bool { return true }

func (b *redirectBackend) Mode() storage.Mode { return storage.ModeRemote }

type fileFixture struct {
	svc     *FileService
	repos   *memory.Manager
	backend storage.Backend
}

func newFileFixture(t *testing.T, cfg FileServiceConfig, backend storage.Backend, clock func() time.Time) *fileFixture {
	t.Helper()
	if backend == nil {
		local, err := storage.NewLocal(filepath.Join(t.TempDir(), "uploads"), logging.Nop())
		require.NoError(t, err)
		backend = local
	}
	if clock == nil {
		clock = newFakeClock().Now
	}
	repos := memory.NewManager()
	return &fileFixture{
		svc:     NewFileService(newTxDB(t), repos, backend, cfg, logging.Nop(), clock),
		repos:   repos,
		backend: backend,
	}
}

func defaultFileConfig() FileServiceConfig {
	return FileServiceConfig{
		AllowedExtensions: []string{"txt", "pdf", "png", "jpg", "jpeg", "gif", "doc", "docx", "zip"},
		MaxFileSize:       1 << 20,
		DefaultPageSize:   10,
	}
}
