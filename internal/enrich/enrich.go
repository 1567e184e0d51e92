// Package enrich attaches supplementary web research to completed entries.
// Two providers are supported: OpenAI with its web search tool, and
// Perplexity's sonar models. Both are asked for the same JSON shape and
// their replies are validated before anything is stored.
package enrich

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/soundreel/soundreel-go/internal/analysis"
	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/enrich.log", "enrich", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("enrich")
	}
}

// Provider researches the subjects extracted from one post and returns an
// enrichment item per subject it found something about.
type Provider interface {
	Enrich(ctx context.Context, results entry.Results) ([]entry.EnrichmentItem, error)
	Name() string
}

// promptData shapes the extracted subjects for the enrichment template.
func promptData(results entry.Results) map[string]any {
	return map[string]any{
		"Songs":   results.Songs,
		"Films":   results.Films,
		"Notes":   results.Notes,
		"Tags":    strings.Join(results.Tags, ", "),
		"Summary": results.Summary,
	}
}

// NewProvider builds the provider selected by settings, with the datastore
// override taking precedence.
func NewProvider(settings *conf.Settings, client *httpclient.Client, loader *prompts.Loader, override datastore.EnrichConfig) (Provider, error) {
	if client == nil {
		client = httpclient.New(nil)
	}

	name := settings.Enrich.Provider
	if override.Provider != "" {
		name = override.Provider
	}

	switch name {
	case "openai":
		model := settings.Enrich.OpenAI.Model
		if override.Model != "" {
			model = override.Model
		}
		return newOpenAIProvider(settings, client, loader, model)
	case "perplexity":
		model := settings.Enrich.Perplexity.Model
		if override.Model != "" {
			model = override.Model
		}
		return newPerplexityProvider(settings, client, loader, model)
	default:
		return nil, errors.Newf("unknown enrichment provider %q", name).
			Component("enrich").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// enrichmentSchema mirrors the array element shape the enrichment prompt
// requests.
type enrichmentSchema struct {
	Label string `json:"label"`
	Text  string `json:"text"`
	Links []struct {
		Label string `json:"label"`
		URL   string `json:"url"`
	} `json:"links"`
}

// parseEnrichments validates a provider reply into enrichment items. A
// bare object, which some models answer with when only one subject
// matched, is accepted as a single-element array. Items without a label
// and links that are not plain http(s) URLs are dropped.
func parseEnrichments(reply, providerName string) ([]entry.EnrichmentItem, error) {
	cleaned := analysis.StripFences(reply)
	if !strings.HasPrefix(cleaned, "[") {
		if extracted, ok := analysis.ExtractJSONArray(cleaned); ok {
			cleaned = extracted
		} else if extracted, ok := analysis.ExtractJSONObject(cleaned); ok {
			cleaned = "[" + extracted + "]"
		} else {
			return nil, errors.Newf("enrichment reply contained no JSON").
				Component("enrich").
				Category(errors.CategoryJSONParsing).
				Build()
		}
	}

	var parsed []enrichmentSchema
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, errors.Newf("failed to parse enrichment reply: %w", err).
			Component("enrich").
			Category(errors.CategoryJSONParsing).
			Build()
	}

	now := time.Now()
	items := make([]entry.EnrichmentItem, 0, len(parsed))
	for _, p := range parsed {
		if strings.TrimSpace(p.Label) == "" {
			logger.Warn("dropping enrichment item without label", "provider", providerName)
			continue
		}
		item := entry.EnrichmentItem{
			Label:     strings.TrimSpace(p.Label),
			Text:      strings.TrimSpace(p.Text),
			Provider:  providerName,
			CreatedAt: now,
		}
		for _, link := range p.Links {
			if !validHTTPURL(link.URL) {
				logger.Warn("dropping invalid enrichment link", "url", link.URL)
				continue
			}
			item.Links = append(item.Links, entry.LinkItem{Label: link.Label, URL: link.URL})
		}
		items = append(items, item)
	}
	return items, nil
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
