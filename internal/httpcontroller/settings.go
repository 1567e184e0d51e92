package httpcontroller

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/privacy"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

// Features

func (s *Server) handleGetFeatures(c echo.Context) error {
	features, err := s.store.GetFeatures(c.Request().Context())
	if err != nil {
		logger.Error("failed to load features", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load features")
	}
	return c.JSON(http.StatusOK, features)
}

func (s *Server) handlePutFeatures(c echo.Context) error {
	var features datastore.Features
	if err := c.Bind(&features); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.store.SaveFeatures(c.Request().Context(), features); err != nil {
		logger.Error("failed to save features", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save features")
	}
	logger.Info("features updated",
		"cobalt", features.CobaltEnabled,
		"media_analysis", features.MediaAnalysisEnabled,
		"auto_enrich", features.AutoEnrichEnabled)
	return c.JSON(http.StatusOK, features)
}

// Instagram session

type instagramConfigResponse struct {
	Cookies   map[string]string `json:"cookies"`
	UserAgent string            `json:"user_agent"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// handleGetInstagram returns the stored session with cookie values masked.
// Session cookies are credentials and never leave the server in full.
func (s *Server) handleGetInstagram(c echo.Context) error {
	cfg, err := s.store.GetPrivateAPIConfig(c.Request().Context())
	if err != nil {
		logger.Error("failed to load instagram config", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load instagram config")
	}

	masked := make(map[string]string, len(cfg.Cookies))
	for name, value := range cfg.Cookies {
		masked[name] = privacy.MaskValue(value)
	}
	return c.JSON(http.StatusOK, instagramConfigResponse{
		Cookies:   masked,
		UserAgent: cfg.UserAgent,
		UpdatedAt: cfg.UpdatedAt,
	})
}

type instagramConfigRequest struct {
	Cookies   map[string]string `json:"cookies"`
	UserAgent string            `json:"user_agent"`
}

func (s *Server) handlePutInstagram(c echo.Context) error {
	var req instagramConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Cookies) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cookies are required")
	}

	cfg := datastore.PrivateAPIConfig{
		Cookies:   req.Cookies,
		UserAgent: req.UserAgent,
		UpdatedAt: time.Now(),
	}
	if err := s.store.SavePrivateAPIConfig(c.Request().Context(), cfg); err != nil {
		logger.Error("failed to save instagram config", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save instagram config")
	}
	logger.Info("instagram session updated", "cookies", len(req.Cookies))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleInstagramHealth(c echo.Context) error {
	if s.sessions == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session check unavailable")
	}
	if err := s.sessions.CheckSession(c.Request().Context()); err != nil {
		return c.JSON(http.StatusOK, map[string]any{
			"healthy": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"healthy": true})
}

// Prompts

type promptInfo struct {
	Name     string `json:"name"`
	Default  string `json:"default"`
	Override string `json:"override,omitempty"`
}

func (s *Server) handleGetPrompts(c echo.Context) error {
	cfg, err := s.store.GetPromptConfig(c.Request().Context())
	if err != nil {
		logger.Error("failed to load prompt config", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load prompts")
	}

	infos := make([]promptInfo, 0, len(prompts.Names()))
	for _, name := range prompts.Names() {
		def, _ := prompts.Default(name)
		infos = append(infos, promptInfo{
			Name:     name,
			Default:  def,
			Override: cfg.Overrides[name],
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"prompts": infos})
}

type promptUpdateRequest struct {
	Overrides map[string]string `json:"overrides"`
}

func (s *Server) handlePutPrompts(c echo.Context) error {
	var req promptUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	for name := range req.Overrides {
		if _, ok := prompts.Default(name); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown prompt: "+name)
		}
	}

	cfg := datastore.PromptConfig{Overrides: req.Overrides}
	if err := s.store.SavePromptConfig(c.Request().Context(), cfg); err != nil {
		logger.Error("failed to save prompt config", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save prompts")
	}
	if s.loader != nil {
		s.loader.Invalidate()
	}
	return c.NoContent(http.StatusNoContent)
}

// Enrichment provider

func (s *Server) handleGetEnrich(c echo.Context) error {
	cfg, err := s.store.GetEnrichConfig(c.Request().Context())
	if err != nil {
		logger.Error("failed to load enrich config", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load enrich config")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handlePutEnrich(c echo.Context) error {
	var cfg datastore.EnrichConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	switch cfg.Provider {
	case "", "openai", "perplexity":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "provider must be openai or perplexity")
	}
	if err := s.store.SaveEnrichConfig(c.Request().Context(), cfg); err != nil {
		logger.Error("failed to save enrich config", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save enrich config")
	}
	return c.JSON(http.StatusOK, cfg)
}

// API keys

type apiKeyInfo struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func (s *Server) handleListAPIKeys(c echo.Context) error {
	keys, err := s.store.GetAPIKeys(c.Request().Context())
	if err != nil {
		logger.Error("failed to load api keys", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load api keys")
	}

	infos := make([]apiKeyInfo, 0, len(keys.Keys))
	for _, k := range keys.Keys {
		infos = append(infos, apiKeyInfo{
			Key:       privacy.MaskKey(k.Key),
			Label:     k.Label,
			CreatedAt: k.CreatedAt,
			RevokedAt: k.RevokedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"keys": infos})
}

type createAPIKeyRequest struct {
	Label string `json:"label"`
}

// handleCreateAPIKey issues a new key. The full key is returned only in
// this response; listings show it masked.
func (s *Server) handleCreateAPIKey(c echo.Context) error {
	var req createAPIKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		logger.Error("failed to generate api key", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate api key")
	}
	key := datastore.APIKey{
		Key:       hex.EncodeToString(raw),
		Label:     req.Label,
		CreatedAt: time.Now(),
	}

	ctx := c.Request().Context()
	keys, err := s.store.GetAPIKeys(ctx)
	if err != nil {
		logger.Error("failed to load api keys", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save api key")
	}
	keys.Keys = append(keys.Keys, key)
	if err := s.store.SaveAPIKeys(ctx, keys); err != nil {
		logger.Error("failed to save api keys", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save api key")
	}

	logger.Info("api key created", "label", key.Label, "key", privacy.MaskKey(key.Key))
	return c.JSON(http.StatusCreated, key)
}

// handleRevokeAPIKey marks a key revoked. Keys are kept on file so the
// audit of which key existed when survives revocation.
func (s *Server) handleRevokeAPIKey(c echo.Context) error {
	ctx := c.Request().Context()
	keys, err := s.store.GetAPIKeys(ctx)
	if err != nil {
		logger.Error("failed to load api keys", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke api key")
	}

	target := c.Param("key")
	found := false
	now := time.Now()
	for i := range keys.Keys {
		if keys.Keys[i].Key == target && !keys.Keys[i].Revoked() {
			keys.Keys[i].RevokedAt = &now
			found = true
		}
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "api key not found")
	}

	if err := s.store.SaveAPIKeys(ctx, keys); err != nil {
		logger.Error("failed to save api keys", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke api key")
	}
	logger.Info("api key revoked", "key", privacy.MaskKey(target))
	return c.NoContent(http.StatusNoContent)
}
