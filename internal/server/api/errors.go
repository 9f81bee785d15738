package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/labstack/echo/v4"
)

// errorResponse is the only body shape used for failures.
type errorResponse struct {
	Error string `json:"error"`
}

// detail returns the message wrapped around kind, e.g. "file type not
// allowed" for "validation failed: file type not allowed".
func detail(err, kind error) string {
	msg := strings.TrimPrefix(err.Error(), kind.Error()+": ")
	if msg == "" {
		return kind.Error()
	}
	return msg
}

// statusFor maps an error kind to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, detail(err, common.ErrValidation)
	case errors.Is(err, common.ErrConflict):
		return http.StatusBadRequest, detail(err, common.ErrConflict)
	case errors.Is(err, common.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file exceeds maximum allowed size"
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "file not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// mapServiceError translates service-layer errors into HTTP responses.
// Server-side failures are logged with the full cause; the client only sees
// the generic message.
func mapServiceError(c echo.Context, err error) error {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		logFailure(c, code, err)
	}
	return c.JSON(code, errorResponse{Error: msg})
}

func logFailure(c echo.Context, code int, err error) {
	req := c.Request()
	requestLogger(c).Error(req.Context(), "request failed",
		"status", code,
		"method", req.Method,
		"path", req.URL.Path,
		"error", err,
		"request_id", requestID(c),
	)
}

// httpErrorHandler renders echo's own errors (unknown route, body limit,
// panics recovered by middleware) in the same shape as service errors.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := statusFor(err)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code == http.StatusRequestEntityTooLarge {
		msg = "file exceeds maximum allowed size"
	}
	if code >= http.StatusInternalServerError {
		logFailure(c, code, err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}
