// Package httpcontroller exposes the pipeline over HTTP: entry submission
// and retrieval, runtime settings, API key management and the Telegram
// webhook. Built on echo with per-route handlers grouped by concern.
package httpcontroller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
	"github.com/soundreel/soundreel-go/internal/processor"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/webserver.log", "httpcontroller", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("httpcontroller")
	}
}

// Pipeline is the processor surface the HTTP layer needs.
type Pipeline interface {
	Process(ctx context.Context, url, channel string) (*processor.Outcome, error)
	Enrich(ctx context.Context, e *entry.Entry) ([]entry.EnrichmentItem, error)
}

// SessionChecker verifies stored Instagram credentials.
type SessionChecker interface {
	CheckSession(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings

	store    datastore.Interface
	pipeline Pipeline
	sessions SessionChecker
	loader   *prompts.Loader
	http     *httpclient.Client

	telegramBaseURL string
}

// New creates the server and registers all routes.
func New(settings *conf.Settings, store datastore.Interface, pipeline Pipeline, sessions SessionChecker, loader *prompts.Loader, client *httpclient.Client) *Server {
	if client == nil {
		client = httpclient.New(nil)
	}

	s := &Server{
		Echo:     echo.New(),
		Settings: settings,
		store:    store,
		pipeline: pipeline,
		sessions: sessions,
		loader:   loader,
		http:     client,
	}

	s.Echo.HideBanner = true
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status)
			return nil
		},
	}))

	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.Echo.GET("/healthz", s.handleHealthz)
	s.Echo.POST("/webhook/telegram", s.handleTelegramWebhook)

	api := s.Echo.Group("/api/v1", s.apiKeyAuth)

	api.POST("/entries", s.handleCreateEntry)
	api.GET("/entries", s.handleListEntries)
	api.GET("/entries/:id", s.handleGetEntry)
	api.DELETE("/entries/:id", s.handleDeleteEntry)
	api.POST("/entries/:id/enrich", s.handleEnrichEntry)

	api.GET("/settings/features", s.handleGetFeatures)
	api.PUT("/settings/features", s.handlePutFeatures)
	api.GET("/settings/instagram", s.handleGetInstagram)
	api.PUT("/settings/instagram", s.handlePutInstagram)
	api.GET("/settings/instagram/health", s.handleInstagramHealth)
	api.GET("/settings/prompts", s.handleGetPrompts)
	api.PUT("/settings/prompts", s.handlePutPrompts)
	api.GET("/settings/enrich", s.handleGetEnrich)
	api.PUT("/settings/enrich", s.handlePutEnrich)

	api.GET("/apikeys", s.handleListAPIKeys)
	api.POST("/apikeys", s.handleCreateAPIKey)
	api.DELETE("/apikeys/:key", s.handleRevokeAPIKey)
}

// Start runs the server until the listener fails.
func (s *Server) Start() error {
	addr := ":" + s.Settings.WebServer.Port
	logger.Info("starting http server", "addr", addr)
	return s.Echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
