package api

import (
	"snapfetch/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Range"},
	}))
	e.Use(RequestLogger())

	// Rate limiter on the fetch endpoint only
	submitLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health & stats
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Submit a post URL (rate-limited)
	e.POST("/api/media", handler.HandleSubmit, submitLimiter.Middleware())

	// Bundle staged assets
	e.POST("/api/download-all", handler.HandleDownloadAll)

	// Retrieve a staged file
	e.GET("/api/downloads/:filename", handler.HandleDownload)

	return e
}
