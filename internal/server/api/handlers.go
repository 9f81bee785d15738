package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/services"
	"github.com/dmitrijs2005/filehost/internal/server/storage"
	"github.com/labstack/echo/v4"
)

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler contains the HTTP handlers for the filehost API.
type Handler struct {
	files       *services.FileService
	users       *services.UserService
	db          Pinger
	storageMode storage.Mode
	logger      logging.Logger
}

// NewHandler creates a handler over the given services.
func NewHandler(files *services.FileService, users *services.UserService, db Pinger, mode storage.Mode, logger logging.Logger) *Handler {
	return &Handler{
		files:       files,
		users:       users,
		db:          db,
		storageMode: mode,
		logger:      logger.With("module", "api"),
	}
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			h.logger.Warn(c.Request().Context(), "health check: database unreachable", "error", err)
			status = "degraded"
			dbStatus = "unreachable"
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
		"storage":  string(h.storageMode),
	})
}

// fileID parses the :id path parameter. Non-numeric ids cannot name a file.
func fileID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, common.ErrNotFound
	}
	return id, nil
}

// queryInt returns the integer query parameter name, or 0 when absent or
// malformed, which the services treat as "use the default".
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
