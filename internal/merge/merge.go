// Package merge combines songs found by the concurrent detectors into one
// deduplicated list. Matching is by case-insensitive title and artist; a
// song confirmed by both audio fingerprinting and media analysis is
// promoted to the "both" source.
package merge

import (
	"strings"

	"github.com/soundreel/soundreel-go/internal/entry"
)

func songKey(s entry.Song) string {
	return strings.ToLower(strings.TrimSpace(s.Title)) + "|" + strings.ToLower(strings.TrimSpace(s.Artist))
}

// Songs merges the fingerprint or platform-metadata seed with the songs the
// media analysis produced. The seed, when present, always comes first.
// Order of the analysis songs is preserved; the first occurrence of a
// duplicate wins, later occurrences only backfill missing fields.
func Songs(seed *entry.Song, analyzed []entry.Song) []entry.Song {
	var merged []entry.Song
	index := make(map[string]int)

	if seed != nil && strings.TrimSpace(seed.Title) != "" {
		merged = append(merged, *seed)
		index[songKey(*seed)] = 0
	}

	for _, song := range analyzed {
		// Model suggestions must carry both a title and an artist.
		if strings.TrimSpace(song.Title) == "" || strings.TrimSpace(song.Artist) == "" {
			continue
		}
		key := songKey(song)
		if at, seen := index[key]; seen {
			existing := &merged[at]
			// Fingerprint seed confirmed by analysis: promote. A
			// platform-metadata seed keeps its source, the platform naming a
			// track is not audio evidence.
			if existing.Source == entry.SourceFingerprint && song.Source == entry.SourceAIAnalysis {
				existing.Source = entry.SourceBoth
			}
			backfillSong(existing, song)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, song)
	}
	return merged
}

// backfillSong copies fields the duplicate has and the kept song lacks.
func backfillSong(dst *entry.Song, src entry.Song) {
	if dst.Album == "" {
		dst.Album = src.Album
	}
	if dst.ReleaseDate == "" {
		dst.ReleaseDate = src.ReleaseDate
	}
	if dst.Timecode == "" {
		dst.Timecode = src.Timecode
	}
}

// Films deduplicates films by case-insensitive title, first occurrence
// wins with year backfill.
func Films(films []entry.Film) []entry.Film {
	var merged []entry.Film
	index := make(map[string]int)

	for _, film := range films {
		title := strings.TrimSpace(film.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if at, seen := index[key]; seen {
			if merged[at].Year == "" {
				merged[at].Year = film.Year
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, film)
	}
	return merged
}
