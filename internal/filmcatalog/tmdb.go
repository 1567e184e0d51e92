// Package filmcatalog resolves identified films against The Movie Database
// (TMDB), filling in the poster, overview and IMDb ID.
package filmcatalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/filmcatalog.log", "filmcatalog", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("filmcatalog")
	}
}

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	posterBaseURL  = "https://image.tmdb.org/t/p/w200"

	cacheTTL = 24 * time.Hour
)

// Client talks to the TMDB API.
type Client struct {
	settings *conf.Settings
	http     *httpclient.Client
	baseURL  string
	cache    *gocache.Cache
}

// New creates a Client.
func New(settings *conf.Settings, client *httpclient.Client) *Client {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Client{
		settings: settings,
		http:     client,
		baseURL:  defaultBaseURL,
		cache:    gocache.New(cacheTTL, time.Hour),
	}
}

// Enabled reports whether a TMDB API key is configured.
func (c *Client) Enabled() bool {
	return c.settings.FilmCatalog.TMDB.APIKey != ""
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.settings.FilmCatalog.TMDB.APIKey)

	resp, err := c.http.Get(ctx, c.baseURL+path+"?"+query.Encode())
	if err != nil {
		return errors.Newf("tmdb request failed: %w", err).
			Component("filmcatalog").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("tmdb returned status %d for %s", resp.StatusCode, path).
			Component("filmcatalog").
			Category(errors.CategoryCatalog).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return json.Unmarshal(body, out)
}

type searchResult struct {
	Results []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		ReleaseDate string `json:"release_date"`
		PosterPath  string `json:"poster_path"`
		Overview    string `json:"overview"`
	} `json:"results"`
}

// Resolve looks the film up on TMDB and fills catalog fields in place. No
// match leaves the film untouched and is not an error.
func (c *Client) Resolve(ctx context.Context, film *entry.Film) error {
	if !c.Enabled() {
		return nil
	}

	cacheKey := film.Title + "|" + film.Year
	if cached, found := c.cache.Get(cacheKey); found {
		if resolved, ok := cached.(entry.Film); ok {
			applyResolved(film, resolved)
		}
		return nil
	}

	query := url.Values{}
	query.Set("query", film.Title)
	if film.Year != "" {
		query.Set("year", film.Year)
	}

	var search searchResult
	if err := c.get(ctx, "/search/movie", query, &search); err != nil {
		return err
	}
	if len(search.Results) == 0 {
		logger.Debug("no tmdb match", "title", film.Title, "year", film.Year)
		c.cache.Set(cacheKey, false, gocache.DefaultExpiration)
		return nil
	}

	match := search.Results[0]
	resolved := entry.Film{TMDBID: match.ID, Overview: match.Overview}
	if match.PosterPath != "" {
		resolved.PosterURL = posterBaseURL + match.PosterPath
	}
	if len(match.ReleaseDate) >= 4 {
		resolved.Year = match.ReleaseDate[:4]
	}

	// Second round trip for the IMDb ID; its absence is not fatal.
	var external struct {
		IMDBID string `json:"imdb_id"`
	}
	if err := c.get(ctx, "/movie/"+strconv.FormatInt(match.ID, 10)+"/external_ids", nil, &external); err != nil {
		logger.Warn("tmdb external_ids lookup failed", "tmdb_id", match.ID, "error", err)
	} else {
		resolved.IMDBID = external.IMDBID
	}

	c.cache.Set(cacheKey, resolved, gocache.DefaultExpiration)
	applyResolved(film, resolved)
	return nil
}

func applyResolved(film *entry.Film, resolved entry.Film) {
	film.TMDBID = resolved.TMDBID
	film.IMDBID = resolved.IMDBID
	film.PosterURL = resolved.PosterURL
	if film.Overview == "" {
		film.Overview = resolved.Overview
	}
	if film.Year == "" {
		film.Year = resolved.Year
	}
}
