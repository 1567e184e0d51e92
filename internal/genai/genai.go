// Package genai wraps the Gemini generateContent REST API behind a small
// Generator interface. Two backends exist: the Google AI API keyed by an
// API key, and Vertex AI authenticated with application default
// credentials. Every response carries token usage and its estimated cost.
package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/genai.log", "genai", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("genai")
	}
}

// Part is one element of a multimodal prompt, either text or inline media.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// MediaPart builds an inline media part.
func MediaPart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

// Request is one generateContent call.
type Request struct {
	Parts []Part

	// ResponseJSON asks the model to emit a JSON document.
	ResponseJSON bool

	// Temperature overrides the model default when non-nil.
	Temperature *float64
}

// Response is the model output with usage accounting.
type Response struct {
	Text  string
	Usage entry.Usage
}

// Generator is a multimodal generation backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// New selects the backend named in the settings.
func New(settings *conf.Settings, client *httpclient.Client) (Generator, error) {
	if client == nil {
		client = httpclient.New(nil)
	}
	switch settings.GenAI.Backend {
	case "googleai":
		return newGoogleClient(settings, client)
	case "vertex":
		return newVertexClient(settings, client)
	default:
		return nil, errors.Newf("unknown genai backend %q", settings.GenAI.Backend).
			Component("genai").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// wire format shared by both backends

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireContent struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

type wireGenerationConfig struct {
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type wireRequest struct {
	Contents         []wireContent         `json:"contents"`
	GenerationConfig *wireGenerationConfig `json:"generationConfig,omitempty"`
}

type wireResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func encodeRequest(req Request) ([]byte, error) {
	parts := make([]wirePart, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Data != nil {
			parts = append(parts, wirePart{InlineData: &wireInlineData{
				MIMEType: p.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			continue
		}
		parts = append(parts, wirePart{Text: p.Text})
	}

	wreq := wireRequest{
		Contents: []wireContent{{Role: "user", Parts: parts}},
	}
	if req.ResponseJSON || req.Temperature != nil {
		wreq.GenerationConfig = &wireGenerationConfig{Temperature: req.Temperature}
		if req.ResponseJSON {
			wreq.GenerationConfig.ResponseMIMEType = "application/json"
		}
	}
	return json.Marshal(wreq)
}

func decodeResponse(body []byte, cfg *conf.GenAISettings) (*Response, error) {
	var parsed wireResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Newf("failed to decode model response: %w", err).
			Component("genai").
			Category(errors.CategoryJSONParsing).
			Build()
	}
	if parsed.Error != nil {
		return nil, errors.Newf("model API error %d: %s", parsed.Error.Code, parsed.Error.Message).
			Component("genai").
			Category(errors.CategoryGeneration).
			Context("api_status", parsed.Error.Status).
			Build()
	}
	if len(parsed.Candidates) == 0 {
		return nil, errors.Newf("model returned no candidates").
			Component("genai").
			Category(errors.CategoryGeneration).
			Build()
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	usage := entry.Usage{
		PromptTokens:    parsed.UsageMetadata.PromptTokenCount,
		CandidateTokens: parsed.UsageMetadata.CandidatesTokenCount,
	}
	usage.CostUSD = computeCost(usage, cfg)

	return &Response{Text: sb.String(), Usage: usage}, nil
}

// computeCost converts token counts to USD using per-million-token rates.
func computeCost(usage entry.Usage, cfg *conf.GenAISettings) float64 {
	const million = 1_000_000
	return float64(usage.PromptTokens)/million*cfg.PromptTokenCost +
		float64(usage.CandidateTokens)/million*cfg.CandidateTokenCost
}
