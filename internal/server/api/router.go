package api

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/auth"
	"github.com/dmitrijs2005/filehost/internal/server/config"
	"github.com/dmitrijs2005/filehost/internal/server/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// multipartOverhead is the room left for multipart boundaries and headers on
// top of the file size limit.
const multipartOverhead = 1 << 20

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, resolver *auth.Resolver, cfg *config.Config, logger logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	// Global middleware
	e.Use(RequestID())
	e.Use(RequestLogger(logger.With("module", "http")))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, common.AuthorizationHeaderName, common.RequestIDHeaderName},
		ExposeHeaders: []string{common.RequestIDHeaderName, echo.HeaderContentDisposition},
	}))

	// Health & metrics
	e.GET("/api/health", handler.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	authenticated := Authenticate(resolver)

	// Auth
	a := e.Group("/api/auth")
	a.POST("/signup", handler.HandleSignup)
	a.POST("/login", handler.HandleLogin)
	a.POST("/logout", handler.HandleLogout, authenticated)
	a.GET("/me", handler.HandleProfile, authenticated)
	a.PUT("/me", handler.HandleUpdateProfile, authenticated)

	// Files
	f := e.Group("/api/files", authenticated)
	uploadMiddleware := []echo.MiddlewareFunc{}
	if cfg.MaxFileSize > 0 {
		uploadMiddleware = append(uploadMiddleware, middleware.BodyLimit(fmt.Sprintf("%dB", cfg.MaxFileSize+multipartOverhead)))
	}
	f.POST("", handler.HandleUpload, uploadMiddleware...)
	f.GET("", handler.HandleList)
	f.GET("/:id", handler.HandleGet)
	f.PATCH("/:id", handler.HandleRename)
	f.DELETE("/:id", handler.HandleDelete)
	f.GET("/:id/download", handler.HandleDownload)

	return e
}
