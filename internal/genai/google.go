package genai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
)

const googleAIBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// googleClient calls the Google AI API with an API key.
type googleClient struct {
	settings *conf.Settings
	http     *httpclient.Client
	baseURL  string
}

func newGoogleClient(settings *conf.Settings, client *httpclient.Client) (*googleClient, error) {
	if settings.GenAI.APIKey == "" {
		return nil, errors.Newf("genai.apikey must be set for the googleai backend").
			Component("genai").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &googleClient{
		settings: settings,
		http:     client,
		baseURL:  googleAIBaseURL,
	}, nil
}

func (g *googleClient) Model() string {
	return g.settings.GenAI.Model
}

func (g *googleClient) Generate(ctx context.Context, req Request) (*Response, error) {
	payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, g.settings.GenAI.Model, g.settings.GenAI.APIKey)

	body, err := postWithRetry(ctx, g.http, endpoint, payload, nil)
	if err != nil {
		return nil, err
	}
	return decodeResponse(body, &g.settings.GenAI)
}

// postWithRetry POSTs JSON, retrying transient failures (429 and 5xx) with
// exponential backoff. extraHeaders may be nil.
func postWithRetry(ctx context.Context, client *httpclient.Client, endpoint string, payload []byte, extraHeaders map[string]string) ([]byte, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range extraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(ctx, req)
		if err != nil {
			return errors.Newf("model request failed: %w", err).
				Component("genai").
				Category(errors.CategoryNetwork).
				Build()
		}
		defer func() { _ = resp.Body.Close() }()

		body, err = io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			logger.Warn("transient model API failure, retrying", "status_code", resp.StatusCode)
			return errors.Newf("model API returned status %d", resp.StatusCode).
				Component("genai").
				Category(errors.CategoryGeneration).
				Context("status_code", resp.StatusCode).
				Build()
		default:
			return backoff.Permanent(errors.Newf("model API returned status %d: %s", resp.StatusCode, truncate(string(body), 300)).
				Component("genai").
				Category(errors.CategoryGeneration).
				Context("status_code", resp.StatusCode).
				Build())
		}
	}

	started := time.Now()
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	logger.Debug("model call complete", "duration_ms", time.Since(started).Milliseconds())
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
