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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIProvider uses the OpenAI responses API with the web search tool.
type openAIProvider struct {
	settings *conf.Settings
	http     *httpclient.Client
	loader   *prompts.Loader
	model    string
	baseURL  string
}

func newOpenAIProvider(settings *conf.Settings, client *httpclient.Client, loader *prompts.Loader, model string) (*openAIProvider, error) {
	if settings.Enrich.OpenAI.APIKey == "" {
		return nil, errors.Newf("enrich.openai.apikey must be set").
			Component("enrich").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &openAIProvider{
		settings: settings,
		http:     client,
		loader:   loader,
		model:    model,
		baseURL:  defaultOpenAIBaseURL,
	}, nil
}

func (p *openAIProvider) Name() string { return "openai" }

type openAIResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *openAIProvider) Enrich(ctx context.Context, results entry.Results) ([]entry.EnrichmentItem, error) {
	prompt, err := p.loader.Render(ctx, prompts.Enrichment, promptData(results))
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model": p.model,
		"input": prompt,
		"tools": []map[string]string{{"type": "web_search_preview"}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/responses", strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.settings.Enrich.OpenAI.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(ctx, req)
	if err != nil {
		return nil, errors.Newf("openai request failed: %w", err).
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
		return nil, errors.Newf("openai returned status %d", resp.StatusCode).
			Component("enrich").
			Category(errors.CategoryEnrichment).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Newf("failed to decode openai response: %w", err).
			Component("enrich").
			Category(errors.CategoryJSONParsing).
			Build()
	}
	if parsed.Error != nil {
		return nil, errors.Newf("openai error: %s", parsed.Error.Message).
			Component("enrich").
			Category(errors.CategoryEnrichment).
			Build()
	}

	// The web search tool emits search-call items before the message.
	var text string
	for _, output := range parsed.Output {
		if output.Type != "message" {
			continue
		}
		for _, content := range output.Content {
			if content.Type == "output_text" {
				text = content.Text
			}
		}
	}
	if text == "" {
		return nil, errors.Newf("openai response contained no message output").
			Component("enrich").
			Category(errors.CategoryEnrichment).
			Build()
	}

	return parseEnrichments(text, p.Name())
}
