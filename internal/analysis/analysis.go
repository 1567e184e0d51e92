// Package analysis turns post metadata and downloaded media into structured
// results using the multimodal model: identified songs and films, notes,
// links, tags and a summary, plus speech transcription.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/genai"
	"github.com/soundreel/soundreel-go/internal/logging"
	"github.com/soundreel/soundreel-go/internal/media"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/analysis.log", "analysis", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("analysis")
	}
}

// Result is the structured output of one content analysis call.
type Result struct {
	Songs         []entry.Song
	Films         []entry.Film
	Notes         []entry.NoteItem
	Links         []entry.LinkItem
	Tags          []string
	Summary       string
	VisualContext string
	OverlayText   string
	Usage         entry.Usage
}

// Analyzer runs content analysis against the multimodal model.
type Analyzer struct {
	settings *conf.Settings
	gen      genai.Generator
	loader   *prompts.Loader
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(settings *conf.Settings, gen genai.Generator, loader *prompts.Loader) *Analyzer {
	return &Analyzer{settings: settings, gen: gen, loader: loader}
}

// analysisSchema mirrors the JSON schema the content-analysis prompt asks
// the model to produce.
type analysisSchema struct {
	Songs []struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
		Album  string `json:"album"`
	} `json:"songs"`
	Films []struct {
		Title string `json:"title"`
		Year  string `json:"year"`
	} `json:"films"`
	Notes []struct {
		Category string `json:"category"`
		Text     string `json:"text"`
	} `json:"notes"`
	Links []struct {
		Label string `json:"label"`
		URL   string `json:"url"`
	} `json:"links"`
	Tags          []string `json:"tags"`
	Summary       string   `json:"summary"`
	VisualContext string   `json:"visual_context"`
	OverlayText   string   `json:"overlay_text"`
}

// Analyze sends the post metadata, optional media and optional transcript
// to the model and parses its structured reply.
func (a *Analyzer) Analyze(ctx context.Context, meta *entry.Metadata, m *media.Media, platform entry.Platform, transcript string) (*Result, error) {
	prompt, err := a.loader.Render(ctx, prompts.ContentAnalysis, map[string]any{
		"PlatformLabel": platform.Label(),
		"Author":        meta.Author,
		"Title":         meta.Title,
		"Caption":       meta.Caption,
		"Transcript":    transcript,
	})
	if err != nil {
		return nil, err
	}

	parts := []genai.Part{genai.TextPart(prompt)}
	if m != nil {
		parts = append(parts, genai.MediaPart(m.Data, m.MIMEType))
	}

	resp, err := a.gen.Generate(ctx, genai.Request{Parts: parts, ResponseJSON: true})
	if err != nil {
		return nil, err
	}

	result, err := parseAnalysis(resp.Text)
	if err != nil {
		return nil, err
	}
	result.Usage = resp.Usage

	logger.Info("content analysis complete",
		"songs", len(result.Songs),
		"films", len(result.Films),
		"notes", len(result.Notes),
		"prompt_tokens", resp.Usage.PromptTokens,
		"candidate_tokens", resp.Usage.CandidateTokens)
	return result, nil
}

func parseAnalysis(text string) (*Result, error) {
	cleaned := StripFences(text)
	if !strings.HasPrefix(cleaned, "{") {
		extracted, ok := ExtractJSONObject(cleaned)
		if !ok {
			return nil, errors.Newf("model reply contained no JSON object").
				Component("analysis").
				Category(errors.CategoryJSONParsing).
				Build()
		}
		cleaned = extracted
	}

	var parsed analysisSchema
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, errors.Newf("failed to parse analysis reply: %w", err).
			Component("analysis").
			Category(errors.CategoryJSONParsing).
			Build()
	}

	result := &Result{
		Tags:          parsed.Tags,
		Summary:       strings.TrimSpace(parsed.Summary),
		VisualContext: strings.TrimSpace(parsed.VisualContext),
		OverlayText:   strings.TrimSpace(parsed.OverlayText),
	}
	for _, s := range parsed.Songs {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		result.Songs = append(result.Songs, entry.Song{
			Title:  strings.TrimSpace(s.Title),
			Artist: strings.TrimSpace(s.Artist),
			Album:  strings.TrimSpace(s.Album),
			Source: entry.SourceAIAnalysis,
		})
	}
	for _, f := range parsed.Films {
		if strings.TrimSpace(f.Title) == "" {
			continue
		}
		result.Films = append(result.Films, entry.Film{
			Title:  strings.TrimSpace(f.Title),
			Year:   strings.TrimSpace(f.Year),
			Source: entry.SourceAIAnalysis,
		})
	}
	for _, n := range parsed.Notes {
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		result.Notes = append(result.Notes, entry.NoteItem{
			Category: strings.TrimSpace(n.Category),
			Text:     strings.TrimSpace(n.Text),
		})
	}
	for _, l := range parsed.Links {
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		result.Links = append(result.Links, entry.LinkItem{
			Label: strings.TrimSpace(l.Label),
			URL:   strings.TrimSpace(l.URL),
		})
	}
	return result, nil
}
