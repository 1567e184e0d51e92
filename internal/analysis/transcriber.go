package analysis

import (
	"context"
	"strings"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/genai"
	"github.com/soundreel/soundreel-go/internal/media"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

// Transcriber extracts spoken words from media using the multimodal model.
type Transcriber struct {
	settings *conf.Settings
	gen      genai.Generator
	loader   *prompts.Loader
}

// NewTranscriber creates a Transcriber.
func NewTranscriber(settings *conf.Settings, gen genai.Generator, loader *prompts.Loader) *Transcriber {
	return &Transcriber{settings: settings, gen: gen, loader: loader}
}

// Transcribe returns the verbatim transcript of speech in m, or an empty
// string when the media contains none. Images are never transcribed.
func (t *Transcriber) Transcribe(ctx context.Context, m *media.Media) (string, entry.Usage, error) {
	var usage entry.Usage
	if m == nil || m.Kind() == "image" {
		return "", usage, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.settings.Transcription.Timeout)
	defer cancel()

	prompt, err := t.loader.Render(ctx, prompts.Transcription, nil)
	if err != nil {
		return "", usage, err
	}

	resp, err := t.gen.Generate(ctx, genai.Request{Parts: []genai.Part{
		genai.TextPart(prompt),
		genai.MediaPart(m.Data, m.MIMEType),
	}})
	if err != nil {
		return "", usage, err
	}

	transcript := strings.TrimSpace(StripFences(resp.Text))
	logger.Debug("transcription complete", "chars", len(transcript))
	return transcript, resp.Usage, nil
}
