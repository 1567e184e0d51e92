// Package processor orchestrates the analysis pipeline for one submitted
// URL: platform detection, the metadata extraction cascade, media download,
// concurrent audio fingerprinting and multimodal analysis, result merging,
// catalog resolution and optional enrichment. Every stage outcome is
// recorded in the entry's append-only action log with credential-shaped
// detail values redacted.
package processor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/soundreel/soundreel-go/internal/analysis"
	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/enrich"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/extractor"
	"github.com/soundreel/soundreel-go/internal/logging"
	"github.com/soundreel/soundreel-go/internal/media"
	"github.com/soundreel/soundreel-go/internal/merge"
	"github.com/soundreel/soundreel-go/internal/privacy"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/processor.log", "processor", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("processor")
	}
}

// Action names recorded in the audit trail.
const (
	ActionURLReceived     = "url_received"
	ActionExtractMetadata = "content_extracted"
	ActionDownloadMedia   = "download_media"
	ActionRecognizeAudio  = "recognize_audio"
	ActionTranscribe      = "transcribe"
	ActionAnalyzeMedia    = "analyze_media"
	ActionMergeResults    = "merge_results"
	ActionResolveMusic    = "resolve_music"
	ActionResolveFilms    = "resolve_films"
	ActionEnrich          = "enrich"
	ActionComplete        = "completed"
)

// Collaborator interfaces, narrow on purpose so tests can fake them.

// MetadataExtractor runs the extraction cascade.
type MetadataExtractor interface {
	Extract(ctx context.Context, url string, platform entry.Platform, cobaltEnabled bool) (*entry.Metadata, []extractor.Attempt, error)
}

// MediaDownloader fetches post media.
type MediaDownloader interface {
	Download(ctx context.Context, url string) (*media.Media, error)
}

// AudioRecognizer fingerprints audio.
type AudioRecognizer interface {
	Enabled() bool
	RecognizeURL(ctx context.Context, mediaURL string) (*entry.Song, error)
	RecognizeData(ctx context.Context, data []byte, filename string) (*entry.Song, error)
}

// ContentAnalyzer runs multimodal content analysis.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, meta *entry.Metadata, m *media.Media, platform entry.Platform, transcript string) (*analysis.Result, error)
}

// SpeechTranscriber transcribes speech in media.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, m *media.Media) (string, entry.Usage, error)
}

// SongResolver resolves songs against the music catalog.
type SongResolver interface {
	Resolve(ctx context.Context, song *entry.Song, addToPlaylist bool) error
}

// FilmResolver resolves films against the film catalog.
type FilmResolver interface {
	Resolve(ctx context.Context, film *entry.Film) error
}

// ProviderFactory builds the enrichment provider for the current override.
type ProviderFactory func(override datastore.EnrichConfig) (enrich.Provider, error)

// Processor runs the pipeline.
type Processor struct {
	Settings    *conf.Settings
	Store       datastore.Interface
	Extractor   MetadataExtractor
	Downloader  MediaDownloader
	Recognizer  AudioRecognizer
	Analyzer    ContentAnalyzer
	Transcriber SpeechTranscriber
	Songs       SongResolver
	Films       FilmResolver
	NewEnricher ProviderFactory
}

// Outcome reports what Process did with a URL.
type Outcome struct {
	Entry         *entry.Entry
	AlreadyExists bool
}

// Process runs the full pipeline for rawURL received on the given input
// channel. When the URL was already processed and duplicates are not
// allowed, the existing entry is returned untouched.
func (p *Processor) Process(ctx context.Context, rawURL, channel string) (outcome *Outcome, err error) {
	// A panic in any stage must not take the whole server down; the entry
	// stays in processing state with whatever audit trail it accumulated.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic", "url", rawURL, "panic", r)
			outcome = nil
			err = errors.Newf("internal pipeline failure: %v", r).
				Component("processor").
				Category(errors.CategoryProcessing).
				Build()
		}
	}()

	if channel == "" {
		channel = entry.ChannelWeb
	}
	normalized := entry.NormalizeURL(rawURL)
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		return nil, errors.Newf("not a valid post URL: %q", rawURL).
			Component("processor").
			Category(errors.CategoryValidation).
			Build()
	}

	features, err := p.Store.GetFeatures(ctx)
	if err != nil {
		return nil, err
	}

	if !features.AllowDuplicateURLs {
		if existing, err := p.Store.FindEntryByURL(ctx, normalized); err == nil {
			logger.Info("url already processed", "url", normalized, "entry_id", existing.ID)
			return &Outcome{Entry: existing, AlreadyExists: true}, nil
		} else if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	e := &entry.Entry{
		ID:       uuid.New().String(),
		URL:      normalized,
		Platform: entry.DetectPlatform(normalized),
		Channel:  channel,
		Status:   entry.StatusProcessing,
	}
	if err := p.Store.CreateEntry(ctx, e); err != nil {
		return nil, err
	}

	logger.Info("processing started", "entry_id", e.ID, "url", normalized, "platform", e.Platform)
	p.log(ctx, e.ID, entry.ActionLogItem{
		Action: ActionURLReceived,
		Status: entry.ActionSuccess,
		Details: map[string]any{
			"url":      normalized,
			"platform": string(e.Platform),
			"channel":  channel,
		},
	})

	if err := p.run(ctx, e, features); err != nil {
		p.setStatus(ctx, e, entry.StatusError, err.Error())
		return &Outcome{Entry: e}, err
	}

	p.setStatus(ctx, e, entry.StatusCompleted, "")
	p.log(ctx, e.ID, entry.ActionLogItem{
		Action: ActionComplete,
		Status: entry.ActionSuccess,
		Details: map[string]any{
			"songs":    len(e.Results.Songs),
			"films":    len(e.Results.Films),
			"cost_usd": e.Results.Usage.CostUSD,
		},
	})
	return &Outcome{Entry: e}, nil
}

// run executes the pipeline stages against e. Only metadata extraction is
// fatal; every later stage degrades to a logged failure.
func (p *Processor) run(ctx context.Context, e *entry.Entry, features datastore.Features) error {
	// Stage: extraction cascade.
	started := time.Now()
	meta, attempts, err := p.Extractor.Extract(ctx, e.URL, e.Platform, features.CobaltEnabled)
	p.logExtraction(ctx, e.ID, attempts, started, err)
	if err != nil {
		return err
	}

	e.Author = meta.Author
	e.Title = meta.Title
	e.Caption = meta.Caption
	e.ThumbnailURL = meta.ThumbnailURL
	e.MediaURL = meta.VideoURL
	if err := p.Store.SetEntryMetadata(ctx, e.ID, *meta); err != nil {
		logger.Error("failed to persist metadata", "entry_id", e.ID, "error", err)
	}

	// Stage: media download, needed by both detectors.
	var m *media.Media
	mediaURL := meta.VideoURL
	if mediaURL == "" {
		mediaURL = meta.AudioURL
	}
	needsMedia := features.MediaAnalysisEnabled || features.AudioRecognitionEnabled
	switch {
	case !needsMedia:
		p.logSkip(ctx, e.ID, ActionDownloadMedia, "analysis and recognition disabled")
	case mediaURL == "":
		p.logSkip(ctx, e.ID, ActionDownloadMedia, "no media url found")
	default:
		started = time.Now()
		m, err = p.Downloader.Download(ctx, mediaURL)
		if err != nil {
			p.logFailure(ctx, e.ID, ActionDownloadMedia, started, err, map[string]any{"media_url": mediaURL})
			m = nil
		} else {
			p.log(ctx, e.ID, entry.ActionLogItem{
				Action:     ActionDownloadMedia,
				Status:     entry.ActionSuccess,
				DurationMs: time.Since(started).Milliseconds(),
				Details: map[string]any{
					"media_url": mediaURL,
					"bytes":     m.Size(),
					"mime_type": m.MIMEType,
				},
			})
		}
	}

	// Stages: fingerprinting and analysis run concurrently. The analysis
	// branch transcribes first so the transcript can inform the model.
	var fingerprintSong *entry.Song
	var analyzed *analysis.Result
	var transcript string
	var usage entry.Usage

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fingerprintSong = p.recognize(gctx, e.ID, features, meta, m)
		return nil
	})
	g.Go(func() error {
		transcript, analyzed = p.analyze(gctx, e.ID, e.Platform, features, meta, m, &usage)
		return nil
	})
	_ = g.Wait()

	// Stage: merge.
	seed := fingerprintSong
	if seed == nil {
		seed = meta.EmbeddedSong
	}
	var analyzedSongs []entry.Song
	var films []entry.Film
	if analyzed != nil {
		analyzedSongs = analyzed.Songs
		films = analyzed.Films
		e.Results.Notes = analyzed.Notes
		e.Results.Links = analyzed.Links
		e.Results.Tags = analyzed.Tags
		e.Results.Summary = analyzed.Summary
		e.Results.VisualContext = analyzed.VisualContext
		e.Results.OverlayText = analyzed.OverlayText
	}
	e.Results.Songs = merge.Songs(seed, analyzedSongs)
	e.Results.Films = merge.Films(films)
	e.Results.Transcript = transcript
	e.Results.Usage = usage

	p.log(ctx, e.ID, entry.ActionLogItem{
		Action: ActionMergeResults,
		Status: entry.ActionSuccess,
		Details: map[string]any{
			"songs": len(e.Results.Songs),
			"films": len(e.Results.Films),
		},
	})

	// Stage: catalog resolution.
	p.resolveSongs(ctx, e)
	p.resolveFilms(ctx, e)

	// Stage: optional enrichment.
	if features.AutoEnrichEnabled {
		p.enrichEntry(ctx, e)
	} else {
		p.logSkip(ctx, e.ID, ActionEnrich, "auto enrichment disabled")
	}

	if err := p.Store.SetEntryResults(ctx, e.ID, e.Results); err != nil {
		return err
	}
	return nil
}

// recognize runs the fingerprinting branch.
func (p *Processor) recognize(ctx context.Context, entryID string, features datastore.Features, meta *entry.Metadata, m *media.Media) *entry.Song {
	switch {
	case !features.AudioRecognitionEnabled:
		p.logSkip(ctx, entryID, ActionRecognizeAudio, "disabled by feature toggle")
		return nil
	case p.Recognizer == nil || !p.Recognizer.Enabled():
		p.logSkip(ctx, entryID, ActionRecognizeAudio, "no recognition token configured")
		return nil
	}

	started := time.Now()
	var song *entry.Song
	var err error
	switch {
	case meta.AudioURL != "":
		song, err = p.Recognizer.RecognizeURL(ctx, meta.AudioURL)
	case m != nil:
		song, err = p.Recognizer.RecognizeData(ctx, m.Data, "media")
	default:
		p.logSkip(ctx, entryID, ActionRecognizeAudio, "no media to fingerprint")
		return nil
	}

	if err != nil {
		p.logFailure(ctx, entryID, ActionRecognizeAudio, started, err, nil)
		return nil
	}

	details := map[string]any{"matched": song != nil}
	if song != nil {
		details["title"] = song.Title
		details["artist"] = song.Artist
	}
	p.log(ctx, entryID, entry.ActionLogItem{
		Action:     ActionRecognizeAudio,
		Status:     entry.ActionSuccess,
		DurationMs: time.Since(started).Milliseconds(),
		Details:    details,
	})
	return song
}

// analyze runs the transcription and content analysis branch.
func (p *Processor) analyze(ctx context.Context, entryID string, platform entry.Platform, features datastore.Features, meta *entry.Metadata, m *media.Media, usage *entry.Usage) (string, *analysis.Result) {
	var transcript string

	if features.TranscriptionEnabled && m != nil {
		started := time.Now()
		text, tUsage, err := p.Transcriber.Transcribe(ctx, m)
		if err != nil {
			p.logFailure(ctx, entryID, ActionTranscribe, started, err, nil)
		} else {
			transcript = text
			usage.Add(tUsage)
			p.log(ctx, entryID, entry.ActionLogItem{
				Action:     ActionTranscribe,
				Status:     entry.ActionSuccess,
				DurationMs: time.Since(started).Milliseconds(),
				Details:    map[string]any{"chars": len(text)},
			})
		}
	} else if features.TranscriptionEnabled {
		p.logSkip(ctx, entryID, ActionTranscribe, "no media downloaded")
	} else {
		p.logSkip(ctx, entryID, ActionTranscribe, "disabled by feature toggle")
	}

	if !features.MediaAnalysisEnabled {
		p.logSkip(ctx, entryID, ActionAnalyzeMedia, "disabled by feature toggle")
		return transcript, nil
	}
	// With no text, no thumbnail and no media there is nothing for the
	// model to look at.
	if meta.Caption == "" && meta.Title == "" && meta.ThumbnailURL == "" && m == nil && transcript == "" {
		p.logSkip(ctx, entryID, ActionAnalyzeMedia, "no content to analyze")
		return transcript, nil
	}

	started := time.Now()
	result, err := p.Analyzer.Analyze(ctx, meta, m, platform, transcript)
	if err != nil {
		p.logFailure(ctx, entryID, ActionAnalyzeMedia, started, err, nil)
		return transcript, nil
	}
	usage.Add(result.Usage)
	p.log(ctx, entryID, entry.ActionLogItem{
		Action:     ActionAnalyzeMedia,
		Status:     entry.ActionSuccess,
		DurationMs: time.Since(started).Milliseconds(),
		Details: map[string]any{
			"songs": len(result.Songs),
			"films": len(result.Films),
			"notes": len(result.Notes),
		},
	})
	return transcript, result
}

// resolveSongs resolves every merged song against the music catalog, with
// one audit record per song so each attempt is accounted for.
func (p *Processor) resolveSongs(ctx context.Context, e *entry.Entry) {
	if len(e.Results.Songs) == 0 {
		p.logSkip(ctx, e.ID, ActionResolveMusic, "no songs to resolve")
		return
	}

	for i := range e.Results.Songs {
		song := &e.Results.Songs[i]
		started := time.Now()
		if err := p.Songs.Resolve(ctx, song, true); err != nil {
			logger.Warn("music resolution failed", "entry_id", e.ID, "title", song.Title, "error", err)
			p.logFailure(ctx, e.ID, ActionResolveMusic, started, err, map[string]any{
				"title":  song.Title,
				"artist": song.Artist,
			})
			continue
		}
		p.log(ctx, e.ID, entry.ActionLogItem{
			Action:     ActionResolveMusic,
			Status:     entry.ActionSuccess,
			DurationMs: time.Since(started).Milliseconds(),
			Details: map[string]any{
				"title":    song.Title,
				"artist":   song.Artist,
				"matched":  song.SpotifyURL != "",
				"playlist": song.AddedToPlaylist,
			},
		})
	}
}

// resolveFilms mirrors resolveSongs for the film catalog.
func (p *Processor) resolveFilms(ctx context.Context, e *entry.Entry) {
	if len(e.Results.Films) == 0 {
		p.logSkip(ctx, e.ID, ActionResolveFilms, "no films to resolve")
		return
	}

	for i := range e.Results.Films {
		film := &e.Results.Films[i]
		started := time.Now()
		if err := p.Films.Resolve(ctx, film); err != nil {
			logger.Warn("film resolution failed", "entry_id", e.ID, "title", film.Title, "error", err)
			p.logFailure(ctx, e.ID, ActionResolveFilms, started, err, map[string]any{
				"title": film.Title,
				"year":  film.Year,
			})
			continue
		}
		p.log(ctx, e.ID, entry.ActionLogItem{
			Action:     ActionResolveFilms,
			Status:     entry.ActionSuccess,
			DurationMs: time.Since(started).Milliseconds(),
			Details: map[string]any{
				"title":   film.Title,
				"year":    film.Year,
				"matched": film.TMDBID != 0,
			},
		})
	}
}

// enrichEntry researches the entry's extracted subjects when there are any.
func (p *Processor) enrichEntry(ctx context.Context, e *entry.Entry) {
	r := e.Results
	if len(r.Songs) == 0 && len(r.Films) == 0 && len(r.Notes) == 0 && r.Summary == "" {
		p.logSkip(ctx, e.ID, ActionEnrich, "nothing to enrich")
		return
	}

	if _, err := p.Enrich(ctx, e); err != nil {
		p.logFailure(ctx, e.ID, ActionEnrich, time.Now(), err, nil)
	}
}

// Enrich researches every song, film and note in the entry's results and
// appends whatever the provider found. Exposed for the manual enrichment
// endpoint.
func (p *Processor) Enrich(ctx context.Context, e *entry.Entry) ([]entry.EnrichmentItem, error) {
	override, err := p.Store.GetEnrichConfig(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := p.NewEnricher(override)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	items, err := provider.Enrich(ctx, e.Results)
	if err != nil {
		return nil, err
	}

	e.Results.Enrichments = append(e.Results.Enrichments, items...)
	if err := p.Store.SetEntryResults(ctx, e.ID, e.Results); err != nil {
		return nil, err
	}

	p.log(ctx, e.ID, entry.ActionLogItem{
		Action:     ActionEnrich,
		Status:     entry.ActionSuccess,
		DurationMs: time.Since(started).Milliseconds(),
		Details: map[string]any{
			"provider": provider.Name(),
			"items":    len(items),
		},
	})
	return items, nil
}

// audit helpers

func (p *Processor) log(ctx context.Context, entryID string, item entry.ActionLogItem) {
	item.Details = privacy.SanitizeDetails(item.Details)
	if err := p.Store.AppendActionLog(ctx, entryID, item); err != nil {
		logger.Error("failed to append action log", "entry_id", entryID, "action", item.Action, "error", err)
	}
}

func (p *Processor) logSkip(ctx context.Context, entryID, action, reason string) {
	p.log(ctx, entryID, entry.ActionLogItem{
		Action:  action,
		Status:  entry.ActionSkipped,
		Details: map[string]any{"reason": reason},
	})
}

func (p *Processor) logFailure(ctx context.Context, entryID, action string, started time.Time, err error, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["error"] = err.Error()
	p.log(ctx, entryID, entry.ActionLogItem{
		Action:     action,
		Status:     entry.ActionFailure,
		DurationMs: time.Since(started).Milliseconds(),
		Details:    details,
	})
}

func (p *Processor) logExtraction(ctx context.Context, entryID string, attempts []extractor.Attempt, started time.Time, err error) {
	stages := make([]map[string]any, 0, len(attempts))
	for _, attempt := range attempts {
		stage := map[string]any{"stage": attempt.Stage}
		switch {
		case attempt.Skipped:
			stage["skipped"] = attempt.SkipNote
		case attempt.Err != nil:
			stage["error"] = attempt.Err.Error()
			stage["duration_ms"] = attempt.Duration.Milliseconds()
		default:
			stage["ok"] = true
			stage["duration_ms"] = attempt.Duration.Milliseconds()
		}
		stages = append(stages, stage)
	}

	status := entry.ActionSuccess
	if err != nil {
		status = entry.ActionFailure
	}
	p.log(ctx, entryID, entry.ActionLogItem{
		Action:     ActionExtractMetadata,
		Status:     status,
		DurationMs: time.Since(started).Milliseconds(),
		Details:    map[string]any{"stages": stages},
	})
}

func (p *Processor) setStatus(ctx context.Context, e *entry.Entry, status, errMsg string) {
	e.Status = status
	e.Error = errMsg
	if err := p.Store.SetEntryStatus(ctx, e.ID, status, errMsg); err != nil {
		logger.Error("failed to set entry status", "entry_id", e.ID, "status", status, "error", err)
	}
}
