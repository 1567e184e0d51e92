package filmcatalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/httpclient"
)

func newTestClient(baseURL string) *Client {
	s := &conf.Settings{}
	s.FilmCatalog.TMDB.APIKey = "tmdb-key"
	return &Client{
		settings: s,
		http:     httpclient.New(nil),
		baseURL:  baseURL,
		cache:    gocache.New(time.Minute, time.Minute),
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	var searches, externals atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tmdb-key", r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/search/movie":
			searches.Add(1)
			assert.Equal(t, "Drive", r.URL.Query().Get("query"))
			assert.Equal(t, "2011", r.URL.Query().Get("year"))
			_, _ = w.Write([]byte(`{"results": [{
				"id": 64690,
				"title": "Drive",
				"release_date": "2011-09-15",
				"poster_path": "/poster.jpg",
				"overview": "A Hollywood stunt driver."
			}]}`))
		case "/movie/64690/external_ids":
			externals.Add(1)
			_, _ = w.Write([]byte(`{"imdb_id": "tt0780504"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	film := entry.Film{Title: "Drive", Year: "2011", Source: entry.SourceAIAnalysis}
	require.NoError(t, c.Resolve(context.Background(), &film))

	assert.Equal(t, int64(64690), film.TMDBID)
	assert.Equal(t, "tt0780504", film.IMDBID)
	assert.Equal(t, "https://image.tmdb.org/t/p/w200/poster.jpg", film.PosterURL)
	assert.Equal(t, "A Hollywood stunt driver.", film.Overview)

	// Second resolve of the same film is served from cache.
	film2 := entry.Film{Title: "Drive", Year: "2011"}
	require.NoError(t, c.Resolve(context.Background(), &film2))
	assert.Equal(t, "tt0780504", film2.IMDBID)
	assert.Equal(t, int32(1), searches.Load())
	assert.Equal(t, int32(1), externals.Load())
}

func TestResolveNoMatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	film := entry.Film{Title: "Totally Made Up Film"}
	require.NoError(t, c.Resolve(context.Background(), &film))
	assert.Zero(t, film.TMDBID)
	assert.Empty(t, film.PosterURL)
}

func TestResolveExternalIDsFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/movie" {
			_, _ = w.Write([]byte(`{"results": [{"id": 1, "title": "Heat", "release_date": "1995-12-15"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	film := entry.Film{Title: "Heat"}
	require.NoError(t, c.Resolve(context.Background(), &film))
	assert.Equal(t, int64(1), film.TMDBID)
	assert.Equal(t, "1995", film.Year)
	assert.Empty(t, film.IMDBID)
}

func TestResolveDisabledWithoutKey(t *testing.T) {
	t.Parallel()

	c := New(&conf.Settings{}, nil)
	film := entry.Film{Title: "Drive"}
	require.NoError(t, c.Resolve(context.Background(), &film))
	assert.Zero(t, film.TMDBID)
}
