// Package fingerprint identifies songs in audio using the AudD recognition
// API. No match is a normal outcome, not an error.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/fingerprint.log", "fingerprint", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("fingerprint")
	}
}

// Recognizer queries the AudD API.
type Recognizer struct {
	settings *conf.Settings
	http     *httpclient.Client
}

// New creates a Recognizer.
func New(settings *conf.Settings, client *httpclient.Client) *Recognizer {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Recognizer{settings: settings, http: client}
}

// Enabled reports whether an API token is configured.
func (r *Recognizer) Enabled() bool {
	return r.settings.Recognition.AudD.APIToken != ""
}

type auddResponse struct {
	Status string `json:"status"`
	Error  struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"error"`
	Result *struct {
		Artist      string `json:"artist"`
		Title       string `json:"title"`
		Album       string `json:"album"`
		ReleaseDate string `json:"release_date"`
		Timecode    string `json:"timecode"`
	} `json:"result"`
}

// RecognizeURL submits a media URL for recognition. Returns nil when the
// service finds no match.
func (r *Recognizer) RecognizeURL(ctx context.Context, mediaURL string) (*entry.Song, error) {
	form := url.Values{}
	form.Set("api_token", r.settings.Recognition.AudD.APIToken)
	form.Set("url", mediaURL)
	form.Set("return", "timecode")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.settings.Recognition.AudD.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return r.send(ctx, req)
}

// RecognizeData submits raw audio bytes for recognition. Returns nil when
// the service finds no match.
func (r *Recognizer) RecognizeData(ctx context.Context, data []byte, filename string) (*entry.Song, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("api_token", r.settings.Recognition.AudD.APIToken); err != nil {
		return nil, err
	}
	if err := writer.WriteField("return", "timecode"); err != nil {
		return nil, err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.settings.Recognition.AudD.Endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return r.send(ctx, req)
}

func (r *Recognizer) send(ctx context.Context, req *http.Request) (*entry.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, r.settings.Recognition.AudD.Timeout)
	defer cancel()

	resp, err := r.http.Do(ctx, req)
	if err != nil {
		return nil, errors.Newf("audd request failed: %w", err).
			Component("fingerprint").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("audd returned status %d", resp.StatusCode).
			Component("fingerprint").
			Category(errors.CategoryRecognition).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed auddResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Newf("failed to decode audd response: %w", err).
			Component("fingerprint").
			Category(errors.CategoryJSONParsing).
			Build()
	}

	if parsed.Status == "error" {
		return nil, errors.Newf("audd error %d: %s", parsed.Error.ErrorCode, parsed.Error.ErrorMessage).
			Component("fingerprint").
			Category(errors.CategoryRecognition).
			Context("audd_code", parsed.Error.ErrorCode).
			Build()
	}
	if parsed.Result == nil {
		logger.Debug("no fingerprint match")
		return nil, nil
	}

	song := &entry.Song{
		Title:       parsed.Result.Title,
		Artist:      parsed.Result.Artist,
		Album:       parsed.Result.Album,
		ReleaseDate: parsed.Result.ReleaseDate,
		Timecode:    parsed.Result.Timecode,
		Source:      entry.SourceFingerprint,
	}
	logger.Info("fingerprint match", "title", song.Title, "artist", song.Artist, "timecode", song.Timecode)
	return song, nil
}
