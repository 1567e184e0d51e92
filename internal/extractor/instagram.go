package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
)

// defaultInstagramUA mimics a desktop browser; the private web API rejects
// unknown user agents.
const defaultInstagramUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var shortcodePattern = regexp.MustCompile(`/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)

// ShortcodeFromURL extracts the post shortcode from an Instagram URL.
func ShortcodeFromURL(url string) (string, bool) {
	m := shortcodePattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type instagramResponse struct {
	Items []struct {
		Caption struct {
			Text string `json:"text"`
		} `json:"caption"`
		User struct {
			Username string `json:"username"`
			FullName string `json:"full_name"`
		} `json:"user"`
		ImageVersions2 struct {
			Candidates []struct {
				URL string `json:"url"`
			} `json:"candidates"`
		} `json:"image_versions2"`
		VideoVersions []struct {
			URL string `json:"url"`
		} `json:"video_versions"`
		MusicMetadata *struct {
			MusicInfo *struct {
				MusicAssetInfo struct {
					Title         string `json:"title"`
					DisplayArtist string `json:"display_artist"`
				} `json:"music_asset_info"`
			} `json:"music_info"`
		} `json:"music_metadata"`
	} `json:"items"`
}

// extractInstagram queries the Instagram private web API using stored
// session cookies. It is the only stage that can report the audio track the
// platform attached to a reel.
func (x *Extractor) extractInstagram(ctx context.Context, url string) (*entry.Metadata, error) {
	shortcode, ok := ShortcodeFromURL(url)
	if !ok {
		return nil, errors.Newf("no shortcode in instagram url").
			Component("extractor").
			Category(errors.CategoryExtraction).
			Build()
	}

	cfg, err := x.store.GetPrivateAPIConfig(ctx)
	if err != nil {
		return nil, err
	}
	if len(cfg.Cookies) == 0 {
		return nil, errors.Newf("no instagram session cookies configured").
			Component("extractor").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, x.settings.Extraction.Instagram.Timeout)
	defer cancel()

	apiURL := fmt.Sprintf("https://www.instagram.com/p/%s/?__a=1&__d=dis", shortcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultInstagramUA
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", cookieHeader(cfg.Cookies))

	resp, err := x.http.Do(ctx, req)
	if err != nil {
		return nil, errors.Newf("instagram request failed: %w", err).
			Component("extractor").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("instagram returned status %d", resp.StatusCode).
			Component("extractor").
			Category(errors.CategoryExtraction).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	// A login page instead of JSON means the session cookies have expired.
	var parsed instagramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Newf("instagram response is not JSON, session likely expired").
			Component("extractor").
			Category(errors.CategoryExtraction).
			Build()
	}
	if len(parsed.Items) == 0 {
		return nil, errors.Newf("instagram response contained no items").
			Component("extractor").
			Category(errors.CategoryExtraction).
			Build()
	}

	item := parsed.Items[0]
	meta := &entry.Metadata{
		Author:      item.User.Username,
		Caption:     item.Caption.Text,
		ExtractedBy: entry.ExtractorInstagramAPI,
	}
	if len(item.ImageVersions2.Candidates) > 0 {
		meta.ThumbnailURL = item.ImageVersions2.Candidates[0].URL
	}
	if len(item.VideoVersions) > 0 {
		meta.VideoURL = item.VideoVersions[0].URL
	}
	if mm := item.MusicMetadata; mm != nil && mm.MusicInfo != nil {
		info := mm.MusicInfo.MusicAssetInfo
		if info.Title != "" {
			meta.EmbeddedSong = &entry.Song{
				Title:  info.Title,
				Artist: info.DisplayArtist,
				Source: entry.SourcePlatformMetadata,
			}
		}
	}
	return meta, nil
}

func cookieHeader(cookies map[string]string) string {
	pairs := make([]string, 0, len(cookies))
	for name, value := range cookies {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; ")
}

// CheckSession verifies that the stored Instagram session still works by
// fetching the Instagram home page API surface. Used by the credential
// health endpoint.
func (x *Extractor) CheckSession(ctx context.Context) error {
	cfg, err := x.store.GetPrivateAPIConfig(ctx)
	if err != nil {
		return err
	}
	if len(cfg.Cookies) == 0 {
		return errors.Newf("no instagram session cookies configured").
			Component("extractor").
			Category(errors.CategoryConfiguration).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.instagram.com/accounts/edit/?__a=1&__d=dis", http.NoBody)
	if err != nil {
		return err
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultInstagramUA
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Cookie", cookieHeader(cfg.Cookies))

	resp, err := x.http.Do(ctx, req)
	if err != nil {
		return errors.Newf("instagram session check failed: %w", err).
			Component("extractor").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("instagram session invalid, status %d", resp.StatusCode).
			Component("extractor").
			Category(errors.CategoryExtraction).
			Context("status_code", resp.StatusCode).
			Build()
	}
	return nil
}
