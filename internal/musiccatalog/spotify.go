// Package musiccatalog resolves identified songs against Spotify and adds
// them to the configured playlist. Songs without a catalog match still get
// search links for YouTube and SoundCloud.
package musiccatalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/musiccatalog.log", "musiccatalog", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("musiccatalog")
	}
}

const (
	defaultAPIBaseURL      = "https://api.spotify.com/v1"
	defaultAccountsBaseURL = "https://accounts.spotify.com"

	// refreshMargin forces a token refresh when the current token expires
	// within this window.
	refreshMargin = 60 * time.Second

	searchCacheTTL = 24 * time.Hour
)

// Client talks to the Spotify Web API, persisting OAuth state in the
// datastore so the access token survives restarts.
type Client struct {
	settings *conf.Settings
	http     *httpclient.Client
	store    datastore.Interface

	apiBaseURL      string
	accountsBaseURL string

	searchCache *gocache.Cache

	mu sync.Mutex
}

// New creates a Client.
func New(settings *conf.Settings, client *httpclient.Client, store datastore.Interface) *Client {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Client{
		settings:        settings,
		http:            client,
		store:           store,
		apiBaseURL:      defaultAPIBaseURL,
		accountsBaseURL: defaultAccountsBaseURL,
		searchCache:     gocache.New(searchCacheTTL, time.Hour),
	}
}

// Enabled reports whether Spotify credentials are configured.
func (c *Client) Enabled() bool {
	return c.settings.MusicCatalog.Spotify.ClientID != "" &&
		c.settings.MusicCatalog.Spotify.ClientSecret != ""
}

// accessToken returns a valid access token, refreshing through the stored
// refresh token when the current one is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	auth, err := c.store.GetMusicAuth(ctx)
	if err != nil {
		return "", err
	}
	if auth.AccessToken != "" && time.Until(auth.ExpiresAt) > refreshMargin {
		return auth.AccessToken, nil
	}
	if auth.RefreshToken == "" {
		return "", errors.Newf("no spotify refresh token stored, authorize the account first").
			Component("musiccatalog").
			Category(errors.CategoryConfiguration).
			Build()
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", auth.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.accountsBaseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	creds := c.settings.MusicCatalog.Spotify.ClientID + ":" + c.settings.MusicCatalog.Spotify.ClientSecret
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", errors.Newf("spotify token refresh failed: %w", err).
			Component("musiccatalog").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("spotify token refresh returned status %d", resp.StatusCode).
			Component("musiccatalog").
			Category(errors.CategoryCatalog).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Newf("failed to decode spotify token response: %w", err).
			Component("musiccatalog").
			Category(errors.CategoryJSONParsing).
			Build()
	}

	auth.AccessToken = parsed.AccessToken
	auth.ExpiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	if parsed.RefreshToken != "" {
		auth.RefreshToken = parsed.RefreshToken
	}
	if err := c.store.SaveMusicAuth(ctx, auth); err != nil {
		return "", err
	}

	logger.Info("spotify access token refreshed", "expires_in_s", parsed.ExpiresIn)
	return auth.AccessToken, nil
}

func (c *Client) apiGet(ctx context.Context, path string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return errors.Newf("spotify request failed: %w", err).
			Component("musiccatalog").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("spotify returned status %d for %s", resp.StatusCode, path).
			Component("musiccatalog").
			Category(errors.CategoryCatalog).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return json.Unmarshal(body, out)
}

func (c *Client) apiPost(ctx context.Context, path string, payload, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+path, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return errors.Newf("spotify request failed: %w", err).
			Component("musiccatalog").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.Newf("spotify returned status %d for %s", resp.StatusCode, path).
			Component("musiccatalog").
			Category(errors.CategoryCatalog).
			Context("status_code", resp.StatusCode).
			Build()
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}

// Track is a resolved Spotify track.
type Track struct {
	URI string
	URL string
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			URI          string `json:"uri"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	} `json:"tracks"`
}

// SearchTrack looks up a song by title and artist. Returns nil when the
// catalog has no match.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) (*Track, error) {
	cacheKey := strings.ToLower(title) + "|" + strings.ToLower(artist)
	if cached, found := c.searchCache.Get(cacheKey); found {
		if cached == nil {
			return nil, nil
		}
		track := cached.(Track)
		return &track, nil
	}

	query := fmt.Sprintf("track:%s artist:%s", title, artist)
	path := "/search?type=track&limit=1&q=" + url.QueryEscape(query)

	var parsed searchResponse
	if err := c.apiGet(ctx, path, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Tracks.Items) == 0 {
		c.searchCache.Set(cacheKey, nil, gocache.DefaultExpiration)
		return nil, nil
	}

	track := Track{
		URI: parsed.Tracks.Items[0].URI,
		URL: parsed.Tracks.Items[0].ExternalURLs.Spotify,
	}
	c.searchCache.Set(cacheKey, track, gocache.DefaultExpiration)
	return &track, nil
}

// AddToPlaylist appends a track to the configured playlist, creating the
// playlist on first use and remembering its ID.
func (c *Client) AddToPlaylist(ctx context.Context, trackURI string) error {
	playlistID, err := c.ensurePlaylist(ctx)
	if err != nil {
		return err
	}
	return c.apiPost(ctx, "/playlists/"+playlistID+"/tracks",
		map[string]any{"uris": []string{trackURI}}, nil)
}

func (c *Client) ensurePlaylist(ctx context.Context) (string, error) {
	auth, err := c.store.GetMusicAuth(ctx)
	if err != nil {
		return "", err
	}
	if auth.PlaylistID != "" {
		return auth.PlaylistID, nil
	}

	var me struct {
		ID string `json:"id"`
	}
	if err := c.apiGet(ctx, "/me", &me); err != nil {
		return "", err
	}

	var playlist struct {
		ID string `json:"id"`
	}
	err = c.apiPost(ctx, "/users/"+me.ID+"/playlists", map[string]any{
		"name":        c.settings.MusicCatalog.Spotify.PlaylistName,
		"public":      false,
		"description": "Songs collected from shared posts",
	}, &playlist)
	if err != nil {
		return "", err
	}

	auth, err = c.store.GetMusicAuth(ctx)
	if err != nil {
		return "", err
	}
	auth.PlaylistID = playlist.ID
	if err := c.store.SaveMusicAuth(ctx, auth); err != nil {
		return "", err
	}

	logger.Info("created playlist", "playlist_id", playlist.ID,
		"name", c.settings.MusicCatalog.Spotify.PlaylistName)
	return playlist.ID, nil
}

// Resolve fills the song's catalog links in place. Search links for
// YouTube and SoundCloud are always set; the Spotify link and playlist
// addition only happen on a catalog match. Resolution failures degrade to
// search links only.
func (c *Client) Resolve(ctx context.Context, song *entry.Song, addToPlaylist bool) error {
	song.YouTubeURL = YouTubeSearchURL(song.Title, song.Artist)
	song.SoundCloudURL = SoundCloudSearchURL(song.Title, song.Artist)

	if !c.Enabled() {
		return nil
	}

	track, err := c.SearchTrack(ctx, song.Title, song.Artist)
	if err != nil {
		return err
	}
	if track == nil {
		logger.Debug("no spotify match", "title", song.Title, "artist", song.Artist)
		return nil
	}

	song.SpotifyURL = track.URL
	if addToPlaylist {
		if err := c.AddToPlaylist(ctx, track.URI); err != nil {
			return err
		}
		song.AddedToPlaylist = true
	}
	return nil
}
