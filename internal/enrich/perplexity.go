package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

const defaultPerplexityBaseURL = "https://api.perplexity.ai"

// perplexityProvider uses Perplexity's chat completions API, whose sonar
// models search the web as part of answering.
type perplexityProvider struct {
	settings *conf.Settings
	http     *httpclient.Client
	loader   *prompts.Loader
	model    string
	baseURL  string
}

func newPerplexityProvider(settings *conf.Settings, client *httpclient.Client, loader *prompts.Loader, model string) (*perplexityProvider, error) {
	if settings.Enrich.Perplexity.APIKey == "" {
		return nil, errors.Newf("enrich.perplexity.apikey must be set").
			Component("enrich").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &perplexityProvider{
		settings: settings,
		http:     client,
		loader:   loader,
		model:    model,
		baseURL:  defaultPerplexityBaseURL,
	}, nil
}

func (p *perplexityProvider) Name() string { return "perplexity" }

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (p *perplexityProvider) Enrich(ctx context.Context, results entry.Results) ([]entry.EnrichmentItem, error) {
	prompt, err := p.loader.Render(ctx, prompts.Enrichment, promptData(results))
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.settings.Enrich.Perplexity.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(ctx, req)
	if err != nil {
		return nil, errors.Newf("perplexity request failed: %w", err).
			Component("enrich").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("perplexity returned status %d", resp.StatusCode).
			Component("enrich").
			Category(errors.CategoryEnrichment).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Newf("failed to decode perplexity response: %w", err).
			Component("enrich").
			Category(errors.CategoryJSONParsing).
			Build()
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.Newf("perplexity response contained no choices").
			Component("enrich").
			Category(errors.CategoryEnrichment).
			Build()
	}

	items, err := parseEnrichments(parsed.Choices[0].Message.Content, p.Name())
	if err != nil {
		return nil, err
	}

	// Citations the model did not fold into its JSON still matter.
	if len(items) > 0 {
		for _, citation := range parsed.Citations {
			if !validHTTPURL(citation) || hasLink(items, citation) {
				continue
			}
			items[0].Links = append(items[0].Links, entry.LinkItem{Label: "Source", URL: citation})
		}
	}
	return items, nil
}

func hasLink(items []entry.EnrichmentItem, url string) bool {
	for _, item := range items {
		for _, link := range item.Links {
			if link.URL == url {
				return true
			}
		}
	}
	return false
}
