package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/auth"
	"github.com/dmitrijs2005/filehost/internal/server/config"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/memory"
	"github.com/dmitrijs2005/filehost/internal/server/services"
	"github.com/dmitrijs2005/filehost/internal/server/storage"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

const testSecret = "test-secret"

type testServer struct {
	e     *echo.Echo
	repos *memory.Manager
	cfg   *config.Config
	logs  *bytes.Buffer
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

// remoteBackend hands out redirect plans and keeps nothing.
type remoteBackend struct {
	planErr error
}

func (remoteBackend) Put(_ context.Context, ownerID int64, uniqueName string, src io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, src); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
	}
	return storage.Locator(ownerID, uniqueName), nil
}

func (b remoteBackend) FetchPlan(_ context.Context, locator string, _ storage.ObjectInfo) (storage.FetchPlan, error) {
	if b.planErr != nil {
		return nil, b.planErr
	}
	return storage.RedirectURL{URL: "https://objects.example/" + locator + "?X-Amz-Expires=3600", ExpiresAt: time.Now().Add(storage.PresignTTL)}, nil
}

func (remoteBackend) Delete(context.Context, string) bool { return true }

func (remoteBackend) Mode() storage.Mode { return storage.ModeRemote }

func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestServer(t *testing.T, backend storage.Backend, db Pinger) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = testSecret
	cfg.MaxFileSize = 1024
	cfg.CORSOrigins = []string{"http://localhost:3000"}

	if backend == nil {
		local, err := storage.NewLocal(filepath.Join(t.TempDir(), "uploads"), logging.Nop())
		require.NoError(t, err)
		backend = local
	}

	txdb := newTxDB(t)
	if db == nil {
		db = txdb
	}

	var logs bytes.Buffer
	logger := logging.NewJSONLogger(&logs, "debug")

	repos := memory.NewManager()
	var tick int64
	clock := func() time.Time {
		tick++
		return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}

	files := services.NewFileService(txdb, repos, backend, services.FileServiceConfig{
		AllowedExtensions: cfg.AllowedExtensions,
		MaxFileSize:       cfg.MaxFileSize,
		DefaultPageSize:   cfg.ItemsPerPage,
	}, logger, clock)
	users := services.NewUserService(txdb, repos, cfg, logger)
	resolver := auth.NewResolver(txdb, repos, []byte(testSecret), logger)

	h := NewHandler(files, users, db, backend.Mode(), logger)
	return &testServer{e: SetupRouter(h, resolver, cfg, logger), repos: repos, cfg: cfg, logs: &logs}
}

// seedUser stores an active user with password "secret1" and returns a
// bearer token for it.
func (s *testServer) seedUser(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	u := s.repos.SeedUser(models.User{Username: name, PasswordHash: string(hash), IsActive: true})
	tok, err := auth.GenerateToken(u.ID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return u, tok
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return s.do(req, token)
}

func (s *testServer) upload(t *testing.T, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return s.do(req, token)
}

// uploadID uploads and returns the new file id, failing the test otherwise.
func (s *testServer) uploadID(t *testing.T, token, filename, content string) int64 {
	t.Helper()
	rec := s.upload(t, token, filename, content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		File models.FileView `json:"file"`
	}
	decode(t, rec, &body)
	return body.File.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	decode(t, rec, &body)
	require.Len(t, body, 1, "error responses carry only the error field")
	msg, _ := body["error"].(string)
	return msg
}
