// Package media downloads post media for analysis and normalizes MIME types
// to the set the multimodal model accepts.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/media.log", "media", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("media")
	}
}

// Media is a downloaded media object held in memory. Downloads are capped
// well below model limits, so buffering is fine.
type Media struct {
	Data     []byte
	MIMEType string
}

// Size returns the payload size in bytes.
func (m *Media) Size() int64 {
	return int64(len(m.Data))
}

// Downloader fetches media within the configured size and time bounds.
type Downloader struct {
	settings *conf.Settings
	http     *httpclient.Client
}

// NewDownloader creates a Downloader.
func NewDownloader(settings *conf.Settings, client *httpclient.Client) *Downloader {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Downloader{settings: settings, http: client}
}

// Download fetches url, enforcing the configured size cap both against the
// declared Content-Length and the actual bytes read.
func (d *Downloader) Download(ctx context.Context, url string) (*Media, error) {
	maxBytes := d.settings.Media.MaxDownloadBytes

	ctx, cancel := context.WithTimeout(ctx, d.settings.Media.DownloadTimeout)
	defer cancel()

	resp, err := d.http.Get(ctx, url)
	if err != nil {
		return nil, errors.Newf("media download failed: %w", err).
			Component("media").
			Category(errors.CategoryMediaDownload).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("media server returned status %d", resp.StatusCode).
			Component("media").
			Category(errors.CategoryMediaDownload).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if resp.ContentLength > maxBytes {
		return nil, errors.Newf("media size %d exceeds limit %d", resp.ContentLength, maxBytes).
			Component("media").
			Category(errors.CategoryLimit).
			Context("content_length", resp.ContentLength).
			Context("limit_bytes", maxBytes).
			Build()
	}

	// Read one byte past the cap to distinguish at-limit from over-limit.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, errors.Newf("failed reading media body: %w", err).
			Component("media").
			Category(errors.CategoryMediaDownload).
			Build()
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.Newf("media exceeds limit %d bytes", maxBytes).
			Component("media").
			Category(errors.CategoryLimit).
			Context("limit_bytes", maxBytes).
			Build()
	}

	mimeType := NormalizeMIME(resp.Header.Get("Content-Type"))
	logger.Debug("media downloaded", "url", url, "bytes", len(data), "mime_type", mimeType)

	return &Media{Data: data, MIMEType: mimeType}, nil
}

// supportedMIMETypes are accepted by the multimodal model as-is.
var supportedMIMETypes = map[string]bool{
	"video/mp4":       true,
	"video/mpeg":      true,
	"video/quicktime": true,
	"video/webm":      true,
	"video/x-flv":     true,
	"video/3gpp":      true,
	"audio/mpeg":      true,
	"audio/mp3":       true,
	"audio/wav":       true,
	"audio/aac":       true,
	"audio/ogg":       true,
	"audio/flac":      true,
	"audio/mp4":       true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// fallbackMIMEType is assumed when the server declares nothing usable.
// Audio is the most common payload in this pipeline.
const fallbackMIMEType = "audio/mpeg"

// NormalizeMIME strips parameters from a Content-Type value and maps it to
// a model-supported MIME type, falling back to audio/mpeg.
func NormalizeMIME(contentType string) string {
	if contentType == "" {
		return fallbackMIMEType
	}
	parsed, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		parsed = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	parsed = strings.ToLower(parsed)

	if supportedMIMETypes[parsed] {
		return parsed
	}

	// Map common aliases onto supported types.
	switch parsed {
	case "application/mp4", "video/x-m4v":
		return "video/mp4"
	case "audio/x-wav":
		return "audio/wav"
	case "audio/x-m4a", "audio/m4a":
		return "audio/mp4"
	case "application/octet-stream", "binary/octet-stream":
		return fallbackMIMEType
	}

	if strings.HasPrefix(parsed, "video/") {
		return "video/mp4"
	}
	if strings.HasPrefix(parsed, "audio/") {
		return fallbackMIMEType
	}
	return fallbackMIMEType
}

// Kind reports the top-level media kind, "video", "audio" or "image".
func (m *Media) Kind() string {
	switch {
	case strings.HasPrefix(m.MIMEType, "video/"):
		return "video"
	case strings.HasPrefix(m.MIMEType, "image/"):
		return "image"
	default:
		return "audio"
	}
}

// String implements fmt.Stringer without dumping payload bytes.
func (m *Media) String() string {
	return fmt.Sprintf("media(%s, %d bytes)", m.MIMEType, len(m.Data))
}
