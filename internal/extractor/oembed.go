package extractor

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/url"

	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
)

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// extractOEmbed queries the platform's public oEmbed endpoint. It yields
// title, author and thumbnail but never a downloadable media URL.
func (x *Extractor) extractOEmbed(ctx context.Context, endpoint, postURL string) (*entry.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, x.settings.Extraction.OEmbedTimeout)
	defer cancel()

	reqURL := endpoint + "?format=json&url=" + url.QueryEscape(postURL)
	resp, err := x.http.Get(ctx, reqURL)
	if err != nil {
		return nil, errors.Newf("oEmbed request failed: %w", err).
			Component("extractor").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("oEmbed endpoint returned status %d", resp.StatusCode).
			Component("extractor").
			Category(errors.CategoryExtraction).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed oembedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Newf("failed to decode oEmbed response: %w", err).
			Component("extractor").
			Category(errors.CategoryJSONParsing).
			Build()
	}
	if parsed.Title == "" && parsed.AuthorName == "" {
		return nil, errors.Newf("oEmbed response contained no usable metadata").
			Component("extractor").
			Category(errors.CategoryExtraction).
			Build()
	}

	// Endpoints HTML-escape titles and author names.
	return &entry.Metadata{
		Title:        html.UnescapeString(parsed.Title),
		Author:       html.UnescapeString(parsed.AuthorName),
		ThumbnailURL: parsed.ThumbnailURL,
		ExtractedBy:  entry.ExtractorOEmbed,
	}, nil
}
