package musiccatalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/httpclient"
)

// memAuthStore keeps MusicAuth in memory.
type memAuthStore struct {
	datastore.Interface
	mu   sync.Mutex
	auth datastore.MusicAuth
}

func (s *memAuthStore) GetMusicAuth(context.Context) (datastore.MusicAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth, nil
}

func (s *memAuthStore) SaveMusicAuth(_ context.Context, a datastore.MusicAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = a
	return nil
}

func newTestClient(apiURL, accountsURL string, store *memAuthStore) *Client {
	s := &conf.Settings{}
	s.MusicCatalog.Spotify.ClientID = "client-id"
	s.MusicCatalog.Spotify.ClientSecret = "client-secret"
	s.MusicCatalog.Spotify.PlaylistName = "SoundReel"

	return &Client{
		settings:        s,
		http:            httpclient.New(nil),
		store:           store,
		apiBaseURL:      apiURL,
		accountsBaseURL: accountsURL,
		searchCache:     gocache.New(time.Minute, time.Minute),
	}
}

func TestAccessTokenRefreshesWhenNearExpiry(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")

		_, _ = w.Write([]byte(`{"access_token": "fresh-token", "expires_in": 3600}`))
	}))
	defer accounts.Close()

	store := &memAuthStore{auth: datastore.MusicAuth{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(30 * time.Second), // inside the 60s margin
	}}
	c := newTestClient("", accounts.URL, store)

	token, err := c.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, int32(1), refreshes.Load())

	// Second call reuses the stored token without another refresh.
	token, err = c.accessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestAccessTokenNoRefreshToken(t *testing.T) {
	t.Parallel()

	c := newTestClient("", "http://unused.local", &memAuthStore{})
	_, err := c.accessToken(context.Background())
	assert.Error(t, err)
}

func newAPIServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *memAuthStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := &memAuthStore{auth: datastore.MusicAuth{
		AccessToken:  "valid-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	return server, store
}

func TestSearchTrack(t *testing.T) {
	t.Parallel()

	var searches atomic.Int32
	server, store := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		assert.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
		assert.Equal(t, "track:Nightcall artist:Kavinsky", r.URL.Query().Get("q"))

		_, _ = w.Write([]byte(`{"tracks": {"items": [{
			"uri": "spotify:track:abc",
			"external_urls": {"spotify": "https://open.spotify.com/track/abc"}
		}]}}`))
	})
	c := newTestClient(server.URL, "", store)

	track, err := c.SearchTrack(context.Background(), "Nightcall", "Kavinsky")
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "spotify:track:abc", track.URI)

	// Cached on repeat.
	_, err = c.SearchTrack(context.Background(), "Nightcall", "Kavinsky")
	require.NoError(t, err)
	assert.Equal(t, int32(1), searches.Load())
}

func TestSearchTrackNoMatch(t *testing.T) {
	t.Parallel()

	server, store := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tracks": {"items": []}}`))
	})
	c := newTestClient(server.URL, "", store)

	track, err := c.SearchTrack(context.Background(), "Unknown", "Nobody")
	require.NoError(t, err)
	assert.Nil(t, track)
}

func TestAddToPlaylistCreatesPlaylistOnce(t *testing.T) {
	t.Parallel()

	var created atomic.Int32
	var added []string
	var mu sync.Mutex

	server, store := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/me":
			_, _ = w.Write([]byte(`{"id": "user-1"}`))
		case r.URL.Path == "/users/user-1/playlists":
			created.Add(1)
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "SoundReel", payload["name"])
			assert.Equal(t, false, payload["public"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": "pl-1"}`))
		case r.URL.Path == "/playlists/pl-1/tracks":
			var payload struct {
				URIs []string `json:"uris"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			mu.Lock()
			added = append(added, payload.URIs...)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"snapshot_id": "snap"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := newTestClient(server.URL, "", store)

	require.NoError(t, c.AddToPlaylist(context.Background(), "spotify:track:abc"))
	require.NoError(t, c.AddToPlaylist(context.Background(), "spotify:track:def"))

	assert.Equal(t, int32(1), created.Load(), "playlist created lazily, once")
	assert.Equal(t, []string{"spotify:track:abc", "spotify:track:def"}, added)
	assert.Equal(t, "pl-1", store.auth.PlaylistID)
}

func TestResolveFillsSearchLinksWithoutCredentials(t *testing.T) {
	t.Parallel()

	c := New(&conf.Settings{}, nil, &memAuthStore{})
	song := entry.Song{Title: "Nightcall", Artist: "Kavinsky", Source: entry.SourceFingerprint}

	require.NoError(t, c.Resolve(context.Background(), &song, true))
	assert.Empty(t, song.SpotifyURL)
	assert.False(t, song.AddedToPlaylist)
	assert.Equal(t, "https://www.youtube.com/results?search_query=Nightcall+Kavinsky", song.YouTubeURL)
	assert.Equal(t, "https://soundcloud.com/search?q=Nightcall+Kavinsky", song.SoundCloudURL)
}

func TestResolveMatchAddsToPlaylist(t *testing.T) {
	t.Parallel()

	server, store := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			_, _ = w.Write([]byte(`{"tracks": {"items": [{
				"uri": "spotify:track:abc",
				"external_urls": {"spotify": "https://open.spotify.com/track/abc"}
			}]}}`))
		case r.URL.Path == "/playlists/pl-9/tracks":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	store.auth.PlaylistID = "pl-9"
	c := newTestClient(server.URL, "", store)

	song := entry.Song{Title: "Nightcall", Artist: "Kavinsky", Source: entry.SourceBoth}
	require.NoError(t, c.Resolve(context.Background(), &song, true))

	assert.Equal(t, "https://open.spotify.com/track/abc", song.SpotifyURL)
	assert.True(t, song.AddedToPlaylist)
}
