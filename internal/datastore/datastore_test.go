package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	ds := New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func newTestEntry(url string) *entry.Entry {
	return &entry.Entry{
		ID:       uuid.New().String(),
		URL:      url,
		Platform: entry.DetectPlatform(url),
		Status:   entry.StatusProcessing,
	}
}

func TestEntryLifecycle(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	e := newTestEntry("https://www.instagram.com/reel/Cxyz")
	require.NoError(t, ds.CreateEntry(ctx, e))

	got, err := ds.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.URL, got.URL)
	assert.Equal(t, entry.PlatformInstagram, got.Platform)
	assert.Equal(t, entry.StatusProcessing, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, ds.SetEntryStatus(ctx, e.ID, entry.StatusCompleted, ""))
	got, err = ds.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.StatusCompleted, got.Status)

	require.NoError(t, ds.DeleteEntry(ctx, e.ID))
	_, err = ds.GetEntry(ctx, e.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestFindEntryByURL(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	e := newTestEntry("https://www.tiktok.com/@user/video/123")
	require.NoError(t, ds.CreateEntry(ctx, e))

	got, err := ds.FindEntryByURL(ctx, e.URL)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	_, err = ds.FindEntryByURL(ctx, "https://www.tiktok.com/@user/video/999")
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateEntryDuplicateURL(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	url := "https://youtu.be/dQw4w9WgXcQ"
	require.NoError(t, ds.CreateEntry(ctx, newTestEntry(url)))

	err := ds.CreateEntry(ctx, newTestEntry(url))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestSetEntryResults(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	e := newTestEntry("https://www.instagram.com/reel/Cresults")
	require.NoError(t, ds.CreateEntry(ctx, e))

	results := entry.Results{
		Songs: []entry.Song{
			{Title: "Nightcall", Artist: "Kavinsky", Source: entry.SourceBoth},
		},
		Tags:    []string{"synthwave"},
		Summary: "A driving scene set to synthwave.",
		Usage:   entry.Usage{PromptTokens: 1200, CandidateTokens: 300, CostUSD: 0.00024},
	}
	require.NoError(t, ds.SetEntryResults(ctx, e.ID, results))

	got, err := ds.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Results.Songs, 1)
	assert.Equal(t, "Kavinsky", got.Results.Songs[0].Artist)
	assert.Equal(t, entry.SourceBoth, got.Results.Songs[0].Source)
	assert.Equal(t, int64(1200), got.Results.Usage.PromptTokens)
}

func TestAppendActionLogPreservesOrder(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	e := newTestEntry("https://www.instagram.com/reel/Clog")
	require.NoError(t, ds.CreateEntry(ctx, e))

	actions := []string{"extract_metadata", "recognize_audio", "analyze_media", "merge_results"}
	for _, action := range actions {
		require.NoError(t, ds.AppendActionLog(ctx, e.ID, entry.ActionLogItem{
			Action:  action,
			Status:  entry.ActionSuccess,
			Details: map[string]any{"stage": action},
		}))
	}

	got, err := ds.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.ActionLog, len(actions))
	for i, action := range actions {
		assert.Equal(t, action, got.ActionLog[i].Action)
		assert.False(t, got.ActionLog[i].Timestamp.IsZero())
		assert.Equal(t, action, got.ActionLog[i].Details["stage"])
	}
}

func TestAppendActionLogMissingEntry(t *testing.T) {
	ds := newTestStore(t)

	err := ds.AppendActionLog(context.Background(), uuid.New().String(), entry.ActionLogItem{
		Action: "extract_metadata",
		Status: entry.ActionFailure,
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestListEntriesNewestFirst(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	older := newTestEntry("https://youtu.be/older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, ds.CreateEntry(ctx, older))

	newer := newTestEntry("https://youtu.be/newer")
	require.NoError(t, ds.CreateEntry(ctx, newer))

	entries, err := ds.ListEntries(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.ID, entries[0].ID)
	assert.Equal(t, older.ID, entries[1].ID)

	count, err := ds.CountEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestFeaturesDefaultsAndRoundtrip(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	features, err := ds.GetFeatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultFeatures(), features)
	assert.True(t, features.MediaAnalysisEnabled)
	assert.False(t, features.CobaltEnabled)

	features.CobaltEnabled = true
	features.AutoEnrichEnabled = true
	require.NoError(t, ds.SaveFeatures(ctx, features))

	got, err := ds.GetFeatures(ctx)
	require.NoError(t, err)
	assert.True(t, got.CobaltEnabled)
	assert.True(t, got.AutoEnrichEnabled)
	assert.True(t, got.TranscriptionEnabled)
}

func TestMusicAuthRoundtrip(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	auth, err := ds.GetMusicAuth(ctx)
	require.NoError(t, err)
	assert.Empty(t, auth.AccessToken)

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, ds.SaveMusicAuth(ctx, MusicAuth{
		AccessToken: "token-a",
		ExpiresAt:   expiry,
		PlaylistID:  "pl-1",
	}))

	got, err := ds.GetMusicAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-a", got.AccessToken)
	assert.Equal(t, "pl-1", got.PlaylistID)
	assert.WithinDuration(t, expiry, got.ExpiresAt, time.Second)
}

func TestAPIKeysRoundtrip(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	keys, err := ds.GetAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys.Keys)

	now := time.Now()
	require.NoError(t, ds.SaveAPIKeys(ctx, APIKeys{Keys: []APIKey{
		{Key: "sr_live_abc", Label: "cli", CreatedAt: now},
		{Key: "sr_live_def", Label: "old", CreatedAt: now, RevokedAt: &now},
	}}))

	got, err := ds.GetAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, got.Keys, 2)
	assert.False(t, got.Keys[0].Revoked())
	assert.True(t, got.Keys[1].Revoked())
}

func TestPromptConfigDefaults(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	cfg, err := ds.GetPromptConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg.Overrides)

	cfg.Overrides["content-analysis"] = "custom template {{.Caption}}"
	require.NoError(t, ds.SavePromptConfig(ctx, cfg))

	got, err := ds.GetPromptConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "custom template {{.Caption}}", got.Overrides["content-analysis"])
}
