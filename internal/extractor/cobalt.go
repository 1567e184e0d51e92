package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/soundreel/soundreel-go/internal/errors"
)

type cobaltRequest struct {
	URL          string `json:"url"`
	DownloadMode string `json:"downloadMode,omitempty"`
}

type cobaltResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  struct {
		Code string `json:"code"`
	} `json:"error"`
}

// resolveCobalt asks the configured cobalt instance for downloadable media
// URLs. Audio and auto modes run concurrently; either succeeding is enough.
func (x *Extractor) resolveCobalt(ctx context.Context, postURL string) (audioURL, videoURL string, err error) {
	cfg := x.settings.Extraction.Cobalt

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var audioErr, videoErr error
	g.Go(func() error {
		audioURL, audioErr = x.cobaltRequest(gctx, cobaltRequest{URL: postURL, DownloadMode: "audio"})
		return nil
	})
	g.Go(func() error {
		videoURL, videoErr = x.cobaltRequest(gctx, cobaltRequest{URL: postURL})
		return nil
	})
	_ = g.Wait()

	if audioURL == "" && videoURL == "" {
		err = audioErr
		if err == nil {
			err = videoErr
		}
		if err == nil {
			err = errors.Newf("cobalt returned no media").
				Component("extractor").
				Category(errors.CategoryExtraction).
				Build()
		}
		return "", "", err
	}
	return audioURL, videoURL, nil
}

func (x *Extractor) cobaltRequest(ctx context.Context, payload cobaltRequest) (string, error) {
	cfg := x.settings.Extraction.Cobalt

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Api-Key "+cfg.APIKey)
	}

	resp, err := x.http.Do(ctx, req)
	if err != nil {
		return "", errors.Newf("cobalt request failed: %w", err).
			Component("extractor").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed cobaltResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.Newf("failed to decode cobalt response: %w", err).
			Component("extractor").
			Category(errors.CategoryJSONParsing).
			Build()
	}

	switch parsed.Status {
	case "tunnel", "redirect", "stream", "success":
		if parsed.URL == "" {
			return "", errors.Newf("cobalt %s response had no url", parsed.Status).
				Component("extractor").
				Category(errors.CategoryExtraction).
				Build()
		}
		return parsed.URL, nil
	case "error":
		return "", errors.Newf("cobalt error: %s", parsed.Error.Code).
			Component("extractor").
			Category(errors.CategoryExtraction).
			Context("cobalt_code", parsed.Error.Code).
			Build()
	default:
		return "", errors.Newf("unexpected cobalt status %q", parsed.Status).
			Component("extractor").
			Category(errors.CategoryExtraction).
			Build()
	}
}
