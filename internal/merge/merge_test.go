package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundreel/soundreel-go/internal/entry"
)

func TestSongsPromotesFingerprintConfirmedByAnalysis(t *testing.T) {
	t.Parallel()

	seed := &entry.Song{
		Title: "Nightcall", Artist: "Kavinsky",
		Timecode: "00:32", Source: entry.SourceFingerprint,
	}
	analyzed := []entry.Song{
		{Title: "nightcall", Artist: "KAVINSKY", Album: "OutRun", Source: entry.SourceAIAnalysis},
		{Title: "A Real Hero", Artist: "College", Source: entry.SourceAIAnalysis},
	}

	merged := Songs(seed, analyzed)
	require.Len(t, merged, 2)

	assert.Equal(t, "Nightcall", merged[0].Title)
	assert.Equal(t, entry.SourceBoth, merged[0].Source)
	assert.Equal(t, "OutRun", merged[0].Album, "album backfilled from analysis")
	assert.Equal(t, "00:32", merged[0].Timecode, "fingerprint fields kept")

	assert.Equal(t, "A Real Hero", merged[1].Title)
	assert.Equal(t, entry.SourceAIAnalysis, merged[1].Source)
}

func TestSongsPlatformMetadataSeedNotPromoted(t *testing.T) {
	t.Parallel()

	seed := &entry.Song{Title: "Nightcall", Artist: "Kavinsky", Source: entry.SourcePlatformMetadata}
	merged := Songs(seed, []entry.Song{
		{Title: "Nightcall", Artist: "Kavinsky", Album: "OutRun", Source: entry.SourceAIAnalysis},
	})

	require.Len(t, merged, 1)
	assert.Equal(t, entry.SourcePlatformMetadata, merged[0].Source)
	assert.Equal(t, "OutRun", merged[0].Album)
}

func TestSongsNoSeed(t *testing.T) {
	t.Parallel()

	merged := Songs(nil, []entry.Song{
		{Title: "Song A", Artist: "X", Source: entry.SourceAIAnalysis},
		{Title: "Song A", Artist: "x", Source: entry.SourceAIAnalysis},
		{Title: "Song B", Artist: "Y", Source: entry.SourceAIAnalysis},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, "Song A", merged[0].Title)
	assert.Equal(t, "Song B", merged[1].Title)
}

func TestSongsSeedOnly(t *testing.T) {
	t.Parallel()

	seed := &entry.Song{Title: "Solo", Artist: "Artist", Source: entry.SourceFingerprint}
	merged := Songs(seed, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, entry.SourceFingerprint, merged[0].Source)
}

func TestSongsSameTitleDifferentArtistKept(t *testing.T) {
	t.Parallel()

	seed := &entry.Song{Title: "Hurt", Artist: "Nine Inch Nails", Source: entry.SourceFingerprint}
	merged := Songs(seed, []entry.Song{
		{Title: "Hurt", Artist: "Johnny Cash", Source: entry.SourceAIAnalysis},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, entry.SourceFingerprint, merged[0].Source)
}

func TestSongsSkipsUntitled(t *testing.T) {
	t.Parallel()

	merged := Songs(&entry.Song{Title: "  "}, []entry.Song{{Title: ""}})
	assert.Empty(t, merged)
}

func TestSongsRequireArtistFromAnalysis(t *testing.T) {
	t.Parallel()

	merged := Songs(nil, []entry.Song{
		{Title: "Untitled Track", Source: entry.SourceAIAnalysis},
		{Title: "Nightcall", Artist: "Kavinsky", Source: entry.SourceAIAnalysis},
	})
	require.Len(t, merged, 1, "analysis song without an artist dropped")
	assert.Equal(t, "Nightcall", merged[0].Title)
}

func TestFilms(t *testing.T) {
	t.Parallel()

	merged := Films([]entry.Film{
		{Title: "Drive", Source: entry.SourceAIAnalysis},
		{Title: "drive", Year: "2011", Source: entry.SourceAIAnalysis},
		{Title: "Heat", Year: "1995", Source: entry.SourceAIAnalysis},
		{Title: ""},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, "Drive", merged[0].Title)
	assert.Equal(t, "2011", merged[0].Year, "year backfilled from duplicate")
	assert.Equal(t, "Heat", merged[1].Title)
}
