package httpcontroller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
)

type createEntryRequest struct {
	URL string `json:"url"`
}

type entryListResponse struct {
	Entries any   `json:"entries"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
}

// handleCreateEntry submits a URL and processes it synchronously. A URL
// already on file returns the existing entry with 200 instead of 201.
func (s *Server) handleCreateEntry(c echo.Context) error {
	var req createEntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}

	outcome, err := s.pipeline.Process(c.Request().Context(), req.URL, entry.ChannelWeb)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		logger.Error("entry processing failed", "url", req.URL, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
	}

	status := http.StatusCreated
	if outcome.AlreadyExists {
		status = http.StatusOK
	}
	return c.JSON(status, outcome.Entry)
}

func (s *Server) handleListEntries(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	ctx := c.Request().Context()
	entries, err := s.store.ListEntries(ctx, limit, offset)
	if err != nil {
		logger.Error("failed to list entries", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list entries")
	}
	total, err := s.store.CountEntries(ctx)
	if err != nil {
		logger.Error("failed to count entries", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list entries")
	}

	return c.JSON(http.StatusOK, entryListResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

func (s *Server) handleGetEntry(c echo.Context) error {
	e, err := s.store.GetEntry(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		logger.Error("failed to load entry", "id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load entry")
	}
	return c.JSON(http.StatusOK, e)
}

func (s *Server) handleDeleteEntry(c echo.Context) error {
	if err := s.store.DeleteEntry(c.Request().Context(), c.Param("id")); err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		logger.Error("failed to delete entry", "id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete entry")
	}
	return c.NoContent(http.StatusNoContent)
}

// handleEnrichEntry runs an on-demand enrichment over an entry's extracted
// results and returns the items that were added.
func (s *Server) handleEnrichEntry(c echo.Context) error {
	ctx := c.Request().Context()

	e, err := s.store.GetEntry(ctx, c.Param("id"))
	if err != nil {
		if errors.IsCategory(err, errors.CategoryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		logger.Error("failed to load entry", "id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load entry")
	}

	items, err := s.pipeline.Enrich(ctx, e)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		logger.Error("enrichment failed", "id", e.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "enrichment failed")
	}
	return c.JSON(http.StatusOK, items)
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
