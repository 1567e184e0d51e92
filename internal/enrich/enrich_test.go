package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

func enrichSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Enrich.Provider = "openai"
	s.Enrich.OpenAI.APIKey = "oa-key"
	s.Enrich.OpenAI.Model = "gpt-4o-mini"
	s.Enrich.Perplexity.APIKey = "pp-key"
	s.Enrich.Perplexity.Model = "sonar"
	return s
}

func enrichResults() entry.Results {
	return entry.Results{
		Songs:   []entry.Song{{Title: "Nightcall", Artist: "Kavinsky"}},
		Films:   []entry.Film{{Title: "Drive", Year: "2011"}},
		Notes:   []entry.NoteItem{{Category: "place", Text: "LA river bridge"}},
		Tags:    []string{"synthwave"},
		Summary: "A night drive edit.",
	}
}

func TestParseEnrichments(t *testing.T) {
	t.Parallel()

	items, err := parseEnrichments("```json\n"+`[
		{
			"label": "Nightcall",
			"text": "Released 2010 on the OutRun album.",
			"links": [
				{"label": "Wiki", "url": "https://en.wikipedia.org/wiki/Nightcall"},
				{"label": "Bad", "url": "not-a-url"},
				{"label": "Script", "url": "javascript:alert(1)"}
			]
		},
		{"label": " ", "text": "no subject"},
		{"label": "Drive (2011)", "text": "Cult film."}
	]`+"\n```", "openai")
	require.NoError(t, err)

	require.Len(t, items, 2, "unlabeled items dropped")
	assert.Equal(t, "Nightcall", items[0].Label)
	assert.Equal(t, "openai", items[0].Provider)
	require.Len(t, items[0].Links, 1, "invalid links dropped")
	assert.Equal(t, "https://en.wikipedia.org/wiki/Nightcall", items[0].Links[0].URL)
	assert.False(t, items[0].CreatedAt.IsZero())
	assert.Equal(t, "Drive (2011)", items[1].Label)
}

func TestParseEnrichmentsProseWrapped(t *testing.T) {
	t.Parallel()

	items, err := parseEnrichments(`Here is what I found:
[{"label": "Nightcall", "text": "Synthwave single."}]
Happy to dig deeper.`, "openai")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Nightcall", items[0].Label)
}

func TestParseEnrichmentsBareObject(t *testing.T) {
	t.Parallel()

	items, err := parseEnrichments(`{"label": "Drive (2011)", "text": "Cult film."}`, "perplexity")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Drive (2011)", items[0].Label)
}

func TestParseEnrichmentsEmptyArray(t *testing.T) {
	t.Parallel()

	items, err := parseEnrichments("[]", "openai")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseEnrichmentsNoJSON(t *testing.T) {
	t.Parallel()

	_, err := parseEnrichments("I found nothing relevant.", "openai")
	assert.Error(t, err)
}

func TestOpenAIProvider(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer oa-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "gpt-4o-mini", payload["model"])
		tools := payload["tools"].([]any)
		require.Len(t, tools, 1)
		assert.Equal(t, "web_search_preview", tools[0].(map[string]any)["type"])

		// The prompt lists every extracted subject.
		prompt := payload["input"].(string)
		assert.Contains(t, prompt, "Nightcall by Kavinsky")
		assert.Contains(t, prompt, "Drive (2011)")
		assert.Contains(t, prompt, "LA river bridge")

		_, _ = w.Write([]byte(`{"output": [
			{"type": "web_search_call", "content": []},
			{"type": "message", "content": [{"type": "output_text", "text":
				"[{\"label\": \"Nightcall\", \"text\": \"Released 2010.\", \"links\": [{\"label\": \"Wiki\", \"url\": \"https://en.wikipedia.org/wiki/Nightcall\"}]}, {\"label\": \"Drive (2011)\", \"text\": \"Cult film.\"}]"
			}]}
		]}`))
	}))
	defer server.Close()

	p, err := newOpenAIProvider(enrichSettings(), httpclient.New(nil), prompts.NewLoader(nil), "gpt-4o-mini")
	require.NoError(t, err)
	p.baseURL = server.URL

	items, err := p.Enrich(context.Background(), enrichResults())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Nightcall", items[0].Label)
	require.Len(t, items[0].Links, 1)
	assert.Equal(t, "Drive (2011)", items[1].Label)
}

func TestPerplexityProviderAppendsCitations(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer pp-key", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content":
				"[{\"label\": \"Drive (2011)\", \"text\": \"Cult film.\", \"links\": [{\"label\": \"IMDb\", \"url\": \"https://www.imdb.com/title/tt0780504/\"}]}]"
			}}],
			"citations": ["https://www.imdb.com/title/tt0780504/", "https://letterboxd.com/film/drive/"]
		}`))
	}))
	defer server.Close()

	p, err := newPerplexityProvider(enrichSettings(), httpclient.New(nil), prompts.NewLoader(nil), "sonar")
	require.NoError(t, err)
	p.baseURL = server.URL

	items, err := p.Enrich(context.Background(), enrichResults())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "perplexity", items[0].Provider)
	require.Len(t, items[0].Links, 2, "new citation appended, duplicate skipped")
	assert.Equal(t, "https://letterboxd.com/film/drive/", items[0].Links[1].URL)
}

func TestNewProviderOverride(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(enrichSettings(), nil, prompts.NewLoader(nil),
		datastore.EnrichConfig{Provider: "perplexity"})
	require.NoError(t, err)
	assert.Equal(t, "perplexity", p.Name())

	_, err = NewProvider(enrichSettings(), nil, prompts.NewLoader(nil),
		datastore.EnrichConfig{Provider: "bing"})
	assert.Error(t, err)
}
