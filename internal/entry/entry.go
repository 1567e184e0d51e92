// Package entry defines the core domain model: a processed social media
// post, the structured results produced by the analysis pipeline, and the
// append-only action log that records how those results were obtained.
package entry

import (
	"time"
)

// Entry processing statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Input channels: how the URL reached the pipeline.
const (
	ChannelWeb = "web"
	ChannelBot = "bot"
)

// Song sources. A song found by both audio fingerprinting and media
// analysis is promoted to SourceBoth.
const (
	SourceFingerprint      = "audio_fingerprint"
	SourceAIAnalysis       = "ai_analysis"
	SourceBoth             = "both"
	SourcePlatformMetadata = "platform_metadata"
)

// Entry is a single processed post, keyed by its canonical URL.
type Entry struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Platform  Platform  `json:"platform"`
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Post metadata from the extraction cascade.
	Author       string `json:"author,omitempty"`
	Title        string `json:"title,omitempty"`
	Caption      string `json:"caption,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	MediaURL     string `json:"media_url,omitempty"`

	Results   Results         `json:"results"`
	ActionLog []ActionLogItem `json:"action_log"`
}

// Results holds the structured content extracted from a post.
type Results struct {
	Songs       []Song           `json:"songs,omitempty"`
	Films       []Film           `json:"films,omitempty"`
	Notes       []NoteItem       `json:"notes,omitempty"`
	Links       []LinkItem       `json:"links,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Transcript  string           `json:"transcript,omitempty"`

	// VisualContext and OverlayText are only produced when full media was
	// supplied to the analysis model.
	VisualContext string `json:"visual_context,omitempty"`
	OverlayText   string `json:"overlay_text,omitempty"`

	Enrichments []EnrichmentItem `json:"enrichments,omitempty"`
	Usage       Usage            `json:"usage"`
}

// Song is a piece of music identified in a post. Catalog URLs are filled in
// by music catalog resolution; Source records which detector found it.
type Song struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	ReleaseDate     string `json:"release_date,omitempty"`
	Timecode        string `json:"timecode,omitempty"`
	Source          string `json:"source"`
	SpotifyURL      string `json:"spotify_url,omitempty"`
	YouTubeURL      string `json:"youtube_url,omitempty"`
	SoundCloudURL   string `json:"soundcloud_url,omitempty"`
	AddedToPlaylist bool   `json:"added_to_playlist,omitempty"`
}

// Film is a film or series identified in a post, resolved against TMDB
// where possible.
type Film struct {
	Title     string `json:"title"`
	Year      string `json:"year,omitempty"`
	TMDBID    int64  `json:"tmdb_id,omitempty"`
	IMDBID    string `json:"imdb_id,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
	Overview  string `json:"overview,omitempty"`
	Source    string `json:"source"`
}

// NoteItem is a categorized piece of information extracted from a post,
// such as a recipe, a place or a product recommendation.
type NoteItem struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// LinkItem is a labeled URL found in or derived from a post.
type LinkItem struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// EnrichmentItem is supplementary web research attached to an entry after
// processing, produced by an enrichment provider.
type EnrichmentItem struct {
	Label     string     `json:"label"`
	Text      string     `json:"text,omitempty"`
	Links     []LinkItem `json:"links,omitempty"`
	Provider  string     `json:"provider"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usage accumulates generative AI token consumption and its estimated cost
// across all model calls made for one entry.
type Usage struct {
	PromptTokens    int64   `json:"prompt_tokens"`
	CandidateTokens int64   `json:"candidate_tokens"`
	CostUSD         float64 `json:"cost_usd"`
}

// Add accumulates another usage sample.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CandidateTokens += other.CandidateTokens
	u.CostUSD += other.CostUSD
}

// Action log statuses.
const (
	ActionSuccess = "success"
	ActionFailure = "failure"
	ActionSkipped = "skipped"
)

// ActionLogItem is one record in an entry's append-only audit trail.
// Details must be sanitized by the privacy layer before the item is stored.
type ActionLogItem struct {
	Action     string         `json:"action"`
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Metadata is the platform metadata produced by the extraction cascade. It
// feeds both the AI analysis prompt and the entry's display fields.
type Metadata struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Caption      string `json:"caption,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	AudioURL     string `json:"audio_url,omitempty"`

	// EmbeddedSong is music attached by the platform itself, for example
	// the audio track named on an Instagram reel.
	EmbeddedSong *Song `json:"embedded_song,omitempty"`

	// ExtractedBy names the cascade stage that produced this metadata.
	ExtractedBy string `json:"extracted_by,omitempty"`
}

// Extraction cascade stage names used in Metadata.ExtractedBy and the
// action log.
const (
	ExtractorInstagramAPI = "instagram_api"
	ExtractorOEmbed       = "oembed"
	ExtractorOGScrape     = "og_scrape"
	ExtractorCobalt       = "cobalt"
)
