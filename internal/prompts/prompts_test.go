package prompts

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/datastore"
)

// countingStore counts GetPromptConfig reads to verify caching.
type countingStore struct {
	datastore.Interface
	overrides map[string]string
	reads     atomic.Int32
}

func (s *countingStore) GetPromptConfig(context.Context) (datastore.PromptConfig, error) {
	s.reads.Add(1)
	return datastore.PromptConfig{Overrides: s.overrides}, nil
}

func TestGetDefault(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	tmpl, err := l.Get(context.Background(), ContentAnalysis)
	require.NoError(t, err)
	assert.Contains(t, tmpl, "songs")
	assert.Contains(t, tmpl, "{{.Caption}}")
}

func TestGetUnknownPrompt(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	_, err := l.Get(context.Background(), "no-such-prompt")
	assert.Error(t, err)
}

func TestOverrideWinsAndIsCached(t *testing.T) {
	t.Parallel()

	store := &countingStore{overrides: map[string]string{
		ContentAnalysis: "custom analysis {{.Caption}}",
	}}
	l := NewLoader(store)
	ctx := context.Background()

	tmpl, err := l.Get(ctx, ContentAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "custom analysis {{.Caption}}", tmpl)

	// Other prompts fall back to their default.
	tmpl, err = l.Get(ctx, Transcription)
	require.NoError(t, err)
	assert.Contains(t, tmpl, "Transcribe")

	// Both reads above share one datastore fetch.
	assert.Equal(t, int32(1), store.reads.Load())

	l.Invalidate()
	_, err = l.Get(ctx, ContentAnalysis)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.reads.Load())
}

func TestBlankOverrideFallsBack(t *testing.T) {
	t.Parallel()

	store := &countingStore{overrides: map[string]string{Transcription: "   "}}
	l := NewLoader(store)

	tmpl, err := l.Get(context.Background(), Transcription)
	require.NoError(t, err)
	assert.Contains(t, tmpl, "Transcribe")
}

func TestRender(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	out, err := l.Render(context.Background(), ContentAnalysis, map[string]any{
		"PlatformLabel": "Instagram",
		"Author":        "someuser",
		"Title":         "",
		"Caption":       "new single out friday",
		"Transcript":    "",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Instagram")
	assert.Contains(t, out, "new single out friday")
	assert.NotContains(t, out, "Spoken transcript")
}

func TestRenderBotResponse(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	out, err := l.Render(context.Background(), BotResponse, map[string]any{
		"Name": "SoundReel",
		"Songs": []map[string]string{
			{"Title": "Nightcall", "Artist": "Kavinsky"},
		},
		"Summary": "A driving clip.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Nightcall by Kavinsky")
	assert.Contains(t, out, "A driving clip.")
}

func TestDefaultAndNames(t *testing.T) {
	t.Parallel()

	assert.Contains(t, Names(), ContentAnalysis)
	_, ok := Default(Enrichment)
	assert.True(t, ok)
	_, ok = Default("missing")
	assert.False(t, ok)
}
