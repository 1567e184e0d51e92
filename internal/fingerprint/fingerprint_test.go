package fingerprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
)

func testRecognizer(endpoint string) *Recognizer {
	s := &conf.Settings{}
	s.Recognition.AudD.APIToken = "test-token"
	s.Recognition.AudD.Endpoint = endpoint
	s.Recognition.AudD.Timeout = 5 * time.Second
	return New(s, nil)
}

func TestRecognizeURLMatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-token", r.PostForm.Get("api_token"))
		assert.Equal(t, "https://cdn.example/audio.mp3", r.PostForm.Get("url"))

		_, _ = w.Write([]byte(`{
			"status": "success",
			"result": {
				"artist": "Kavinsky",
				"title": "Nightcall",
				"album": "OutRun",
				"release_date": "2013-02-25",
				"timecode": "00:32"
			}
		}`))
	}))
	defer server.Close()

	song, err := testRecognizer(server.URL).RecognizeURL(context.Background(), "https://cdn.example/audio.mp3")
	require.NoError(t, err)
	require.NotNil(t, song)
	assert.Equal(t, "Nightcall", song.Title)
	assert.Equal(t, "Kavinsky", song.Artist)
	assert.Equal(t, "OutRun", song.Album)
	assert.Equal(t, "00:32", song.Timecode)
	assert.Equal(t, entry.SourceFingerprint, song.Source)
}

func TestRecognizeNoMatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "success", "result": null}`))
	}))
	defer server.Close()

	song, err := testRecognizer(server.URL).RecognizeURL(context.Background(), "https://cdn.example/a.mp3")
	require.NoError(t, err)
	assert.Nil(t, song, "no match is not an error")
}

func TestRecognizeDataMultipart(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "test-token", r.FormValue("api_token"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "clip.mp3", header.Filename)

		_, _ = w.Write([]byte(`{"status":"success","result":{"artist":"A","title":"T"}}`))
	}))
	defer server.Close()

	song, err := testRecognizer(server.URL).RecognizeData(context.Background(), []byte("audio"), "clip.mp3")
	require.NoError(t, err)
	require.NotNil(t, song)
	assert.Equal(t, "T", song.Title)
}

func TestRecognizeAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "error",
			"error": {"error_code": 901, "error_message": "Recognition failed"}
		}`))
	}))
	defer server.Close()

	_, err := testRecognizer(server.URL).RecognizeURL(context.Background(), "https://cdn.example/a.mp3")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryRecognition))
}

func TestEnabled(t *testing.T) {
	t.Parallel()

	assert.True(t, testRecognizer("https://api.audd.io/").Enabled())

	s := &conf.Settings{}
	assert.False(t, New(s, nil).Enabled())
}
