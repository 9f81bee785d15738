package api

import (
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/auth"
	"github.com/dmitrijs2005/filehost/internal/server/metrics"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	userContextKey      = "user"
	requestIDContextKey = "request_id"
	loggerContextKey    = "logger"
)

// RequestID reuses an incoming X-Request-ID or assigns a new one, and echoes
// it back on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(common.RequestIDHeaderName)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(requestIDContextKey, id)
			c.Response().Header().Set(common.RequestIDHeaderName, id)
			return next(c)
		}
	}
}

func requestID(c echo.Context) string {
	id, _ := c.Get(requestIDContextKey).(string)
	return id
}

// requestLogger returns the logger installed by RequestLogger.
func requestLogger(c echo.Context) logging.Logger {
	if l, ok := c.Get(loggerContextKey).(logging.Logger); ok {
		return l
	}
	return logging.Nop()
}

// RequestLogger logs every request and records it in the HTTP metrics. The
// metric label is the matched route, so ids in paths do not explode it.
func RequestLogger(logger logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			c.Set(loggerContextKey, logger)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			latency := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(req.Method, route, res.Status, latency)

			logger.Info(req.Context(), "request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", latency.Milliseconds(),
				"ip", c.RealIP(),
				"bytes_out", res.Size,
				"request_id", requestID(c),
			)

			return nil
		}
	}
}

// Authenticate resolves the Authorization header to a user and stores it in
// the echo context. Requests without a valid credential get 401.
func Authenticate(resolver *auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := resolver.Resolve(c.Request().Context(), c.Request().Header.Get(common.AuthorizationHeaderName))
			if err != nil {
				return mapServiceError(c, err)
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// currentUser returns the user set by Authenticate.
func currentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
