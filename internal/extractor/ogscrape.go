package extractor

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
)

const scrapeBodyLimit = 8 << 20

// inlineVideoURLPattern matches the video_url field some platforms embed in
// inline script JSON instead of meta tags.
var inlineVideoURLPattern = regexp.MustCompile(`"video_url"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// extractOpenGraph fetches the post page and reads Open Graph and Twitter
// card meta tags, falling back to JSON-LD blocks and inline script JSON for
// the video URL.
func (x *Extractor) extractOpenGraph(ctx context.Context, postURL string) (*entry.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, postURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	// Some platforms only serve meta tags to browser user agents.
	req.Header.Set("User-Agent", defaultInstagramUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := x.http.Do(ctx, req)
	if err != nil {
		return nil, errors.Newf("page fetch failed: %w", err).
			Component("extractor").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("page returned status %d", resp.StatusCode).
			Component("extractor").
			Category(errors.CategoryExtraction).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, scrapeBodyLimit))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, errors.Newf("failed to parse page: %w", err).
			Component("extractor").
			Category(errors.CategoryExtraction).
			Build()
	}

	meta := &entry.Metadata{ExtractedBy: entry.ExtractorOGScrape}

	metaContent := func(selectors ...string) string {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).Attr("content"); ok && v != "" {
				return html.UnescapeString(v)
			}
		}
		return ""
	}

	meta.Title = metaContent(`meta[property="og:title"]`, `meta[name="twitter:title"]`)
	meta.Caption = metaContent(`meta[property="og:description"]`, `meta[name="description"]`, `meta[name="twitter:description"]`)
	meta.ThumbnailURL = metaContent(`meta[property="og:image"]`, `meta[name="twitter:image"]`)
	meta.VideoURL = metaContent(
		`meta[property="og:video:secure_url"]`,
		`meta[property="og:video:url"]`,
		`meta[property="og:video"]`,
	)

	if author := metaContent(`meta[property="og:site_name"]`, `meta[name="twitter:creator"]`); author != "" {
		meta.Author = strings.TrimPrefix(author, "@")
	}

	if meta.Title == "" || meta.VideoURL == "" {
		applyJSONLD(doc, meta)
	}
	if meta.VideoURL == "" {
		meta.VideoURL = findInlineVideoURL(string(body))
	}

	// A page with no recognizable tags yields empty metadata, not an
	// error; the post is still processed from its URL alone.
	return meta, nil
}

type jsonLDVideo struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ContentURL  string `json:"contentUrl"`
	Thumbnail   string `json:"thumbnailUrl"`
	Author      struct {
		Name string `json:"name"`
	} `json:"author"`
}

// applyJSONLD fills empty metadata fields from VideoObject JSON-LD blocks.
func applyJSONLD(doc *goquery.Document, meta *entry.Metadata) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var blocks []jsonLDVideo
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
				return true
			}
		} else {
			var single jsonLDVideo
			if err := json.Unmarshal([]byte(raw), &single); err != nil {
				return true
			}
			blocks = []jsonLDVideo{single}
		}

		for _, block := range blocks {
			if !strings.EqualFold(block.Type, "VideoObject") {
				continue
			}
			if meta.Title == "" {
				meta.Title = block.Name
			}
			if meta.Caption == "" {
				meta.Caption = block.Description
			}
			if meta.VideoURL == "" {
				meta.VideoURL = block.ContentURL
			}
			if meta.ThumbnailURL == "" {
				meta.ThumbnailURL = block.Thumbnail
			}
			if meta.Author == "" {
				meta.Author = block.Author.Name
			}
			return false
		}
		return true
	})
}

// findInlineVideoURL digs a video_url value out of inline script JSON and
// decodes its escape sequences.
func findInlineVideoURL(page string) string {
	m := inlineVideoURLPattern.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	// JSON escapes slashes as \/ which strconv.Unquote does not accept.
	raw := strings.ReplaceAll(m[1], `\/`, "/")
	decoded, err := strconv.Unquote(`"` + raw + `"`)
	if err != nil {
		return ""
	}
	// Some platforms additionally escape ampersands as & inside an
	// HTML-escaped blob.
	return html.UnescapeString(decoded)
}
