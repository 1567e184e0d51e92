package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/httpclient"
)

func googleTestClient(baseURL string) *googleClient {
	s := &conf.Settings{}
	s.GenAI.Backend = "googleai"
	s.GenAI.Model = "gemini-2.0-flash"
	s.GenAI.APIKey = "test-key"
	s.GenAI.PromptTokenCost = 0.10
	s.GenAI.CandidateTokenCost = 0.40
	return &googleClient{settings: s, http: httpclient.New(nil), baseURL: baseURL}
}

const okBody = `{
	"candidates": [{"content": {"parts": [{"text": "{\"summary\":\"ok\"}"}]}}],
	"usageMetadata": {"promptTokenCount": 1000000, "candidatesTokenCount": 500000}
}`

func TestGenerate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash")

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gc, _ := payload["generationConfig"].(map[string]any)
		require.NotNil(t, gc)
		assert.Equal(t, "application/json", gc["responseMimeType"])

		_, _ = w.Write([]byte(okBody))
	}))
	defer server.Close()

	g := googleTestClient(server.URL)
	resp, err := g.Generate(context.Background(), Request{
		Parts:        []Part{TextPart("analyze this"), MediaPart([]byte("vid"), "video/mp4")},
		ResponseJSON: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"ok"}`, resp.Text)
	assert.Equal(t, int64(1000000), resp.Usage.PromptTokens)
	assert.Equal(t, int64(500000), resp.Usage.CandidateTokens)
	// 1M prompt tokens at $0.10 plus 0.5M candidate tokens at $0.40
	assert.InDelta(t, 0.30, resp.Usage.CostUSD, 1e-9)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer server.Close()

	g := googleTestClient(server.URL)
	resp, err := g.Generate(context.Background(), Request{Parts: []Part{TextPart("hi")}})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	g := googleTestClient(server.URL)
	_, err := g.Generate(context.Background(), Request{Parts: []Part{TextPart("hi")}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateNoCandidates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	g := googleTestClient(server.URL)
	_, err := g.Generate(context.Background(), Request{Parts: []Part{TextPart("hi")}})
	assert.Error(t, err)
}

func TestComputeCost(t *testing.T) {
	t.Parallel()

	cfg := &conf.GenAISettings{PromptTokenCost: 0.10, CandidateTokenCost: 0.40}
	cost := computeCost(entry.Usage{PromptTokens: 2_000_000, CandidateTokens: 250_000}, cfg)
	assert.InDelta(t, 0.30, cost, 1e-9)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	s := &conf.Settings{}
	s.GenAI.Backend = "bedrock"
	_, err := New(s, nil)
	assert.Error(t, err)
}
