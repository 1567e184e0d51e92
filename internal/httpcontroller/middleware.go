package httpcontroller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// apiKeyAuth guards the API group with bearer keys issued through the
// /apikeys endpoints. Until the first key is created the API is open, so a
// fresh install can bootstrap itself without editing the database by hand.
func (s *Server) apiKeyAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		keys, err := s.store.GetAPIKeys(c.Request().Context())
		if err != nil {
			logger.Error("failed to load api keys", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "authentication unavailable")
		}

		active := 0
		for _, k := range keys.Keys {
			if !k.Revoked() {
				active++
			}
		}
		if active == 0 {
			return next(c)
		}

		presented := bearerToken(c.Request())
		if presented == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing api key")
		}
		for _, k := range keys.Keys {
			if !k.Revoked() && k.Key == presented {
				return next(c)
			}
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
