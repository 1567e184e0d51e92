// Package prompts manages the model prompt templates. Built-in defaults can
// be overridden per prompt through the datastore; overrides are cached for
// a few minutes so edits take effect without a restart while hot paths
// avoid a database read per call.
package prompts

import (
	"context"
	"strings"
	"text/template"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/errors"
)

// Prompt names.
const (
	ContentAnalysis = "content-analysis"
	Transcription   = "transcription"
	Enrichment      = "enrichment"
	BotResponse     = "bot-response"
)

const (
	cacheTTL     = 5 * time.Minute
	cachePurge   = 10 * time.Minute
	overridesKey = "overrides"
)

// defaults are the built-in prompt templates, executed with
// text/template against the data each caller supplies.
var defaults = map[string]string{
	ContentAnalysis: `You are analyzing a social media post from {{.PlatformLabel}}.

Post metadata:
Author: {{.Author}}
Title: {{.Title}}
Caption: {{.Caption}}
{{if .Transcript}}Spoken transcript: {{.Transcript}}{{end}}

Identify the content of the post and respond with a single JSON object using this exact schema:
{
  "songs": [{"title": "", "artist": "", "album": ""}],
  "films": [{"title": "", "year": ""}],
  "notes": [{"category": "", "text": ""}],
  "links": [{"label": "", "url": ""}],
  "tags": [""],
  "summary": "",
  "visual_context": "",
  "overlay_text": ""
}

Rules:
- List a song only when you are confident it plays in the post or is named in the caption.
- "films" covers films and series referenced or shown.
- "notes" captures useful standalone information such as recipes, places, products or tips, with a short category word.
- "links" lists URLs mentioned in the caption, with a human label.
- "tags" are 3-8 lowercase topical keywords.
- "summary" is one or two sentences describing the post.
- "visual_context" describes what is shown on screen and "overlay_text" quotes any text rendered over the video. Fill them only when media is attached; otherwise use empty strings.
- Use empty arrays when nothing applies. Respond with JSON only.`,

	Transcription: `Transcribe the spoken words in this media verbatim. Respond with the transcript text only, no commentary. If there is no intelligible speech, respond with an empty string.`,

	Enrichment: `Research the subjects extracted from a social media post and provide current, factual information with sources.

{{if .Songs}}Songs:
{{range .Songs}}  - {{.Title}} by {{.Artist}}
{{end}}{{end}}{{if .Films}}Films:
{{range .Films}}  - {{.Title}}{{if .Year}} ({{.Year}}){{end}}
{{end}}{{end}}{{if .Notes}}Notes:
{{range .Notes}}  - {{.Category}}: {{.Text}}
{{end}}{{end}}{{if .Tags}}Tags: {{.Tags}}
{{end}}{{if .Summary}}Post summary: {{.Summary}}
{{end}}
Respond with a JSON array containing one object per subject you found information about:
[{"label": "", "text": "", "links": [{"label": "", "url": ""}]}]

"label" names the subject, e.g. the song or film title. Keep each "text" under 150 words and include only links you verified. Skip subjects you found nothing useful about; respond with [] when that is all of them.`,

	BotResponse: `{{.Name}} processed your link.
{{if .Songs}}Songs:
{{range .Songs}}  - {{.Title}} by {{.Artist}}
{{end}}{{end}}{{if .Films}}Films:
{{range .Films}}  - {{.Title}}{{if .Year}} ({{.Year}}){{end}}
{{end}}{{end}}{{if .Summary}}{{.Summary}}{{end}}`,
}

// Loader resolves prompt templates with datastore overrides.
type Loader struct {
	store datastore.Interface
	cache *gocache.Cache
}

// NewLoader creates a Loader. A nil store disables overrides.
func NewLoader(store datastore.Interface) *Loader {
	return &Loader{
		store: store,
		cache: gocache.New(cacheTTL, cachePurge),
	}
}

// Names returns the known prompt names.
func Names() []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	return names
}

// Default returns the built-in template for name.
func Default(name string) (string, bool) {
	tmpl, ok := defaults[name]
	return tmpl, ok
}

// Get returns the active template for name, preferring a stored override.
func (l *Loader) Get(ctx context.Context, name string) (string, error) {
	def, ok := defaults[name]
	if !ok {
		return "", errors.Newf("unknown prompt %q", name).
			Component("prompts").
			Category(errors.CategoryNotFound).
			Build()
	}

	overrides, err := l.overrides(ctx)
	if err != nil {
		// Fall back to the default rather than failing the pipeline.
		return def, nil
	}
	if override, ok := overrides[name]; ok && strings.TrimSpace(override) != "" {
		return override, nil
	}
	return def, nil
}

func (l *Loader) overrides(ctx context.Context) (map[string]string, error) {
	if l.store == nil {
		return nil, nil
	}
	if cached, found := l.cache.Get(overridesKey); found {
		return cached.(map[string]string), nil
	}

	cfg, err := l.store.GetPromptConfig(ctx)
	if err != nil {
		return nil, err
	}
	l.cache.Set(overridesKey, cfg.Overrides, gocache.DefaultExpiration)
	return cfg.Overrides, nil
}

// Invalidate drops the cached overrides, forcing a reload on next use.
func (l *Loader) Invalidate() {
	l.cache.Delete(overridesKey)
}

// Render resolves the template for name and executes it with data.
func (l *Loader) Render(ctx context.Context, name string, data any) (string, error) {
	raw, err := l.Get(ctx, name)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Parse(raw)
	if err != nil {
		return "", errors.Newf("prompt %q does not parse: %w", name, err).
			Component("prompts").
			Category(errors.CategoryValidation).
			Context("prompt", name).
			Build()
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Newf("prompt %q failed to render: %w", name, err).
			Component("prompts").
			Category(errors.CategoryValidation).
			Context("prompt", name).
			Build()
	}
	return sb.String(), nil
}
