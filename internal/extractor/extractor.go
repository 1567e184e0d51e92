// Package extractor implements the metadata extraction cascade. Stages are
// tried in order of data quality: the Instagram private web API, the
// platform's oEmbed endpoint, Open Graph scraping, and finally the cobalt
// media downloader. The cascade keeps going while the caption or the
// thumbnail is still missing, and each stage only fills fields the earlier
// stages left empty; cobalt additionally supplies a downloadable media URL
// when no other stage produced one. A post with nothing to extract is not
// an error, the metadata simply comes back empty.
package extractor

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/extractor.log", "extractor", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("extractor")
	}
}

// Attempt records the outcome of one cascade stage for the audit trail.
type Attempt struct {
	Stage    string
	Skipped  bool
	SkipNote string
	Err      error
	Duration time.Duration
}

// Extractor runs the metadata extraction cascade.
type Extractor struct {
	settings *conf.Settings
	http     *httpclient.Client
	store    datastore.Interface
}

// New creates an Extractor. The datastore supplies Instagram session
// cookies when the private API stage is enabled.
func New(settings *conf.Settings, client *httpclient.Client, store datastore.Interface) *Extractor {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Extractor{
		settings: settings,
		http:     client,
		store:    store,
	}
}

// Extract runs the cascade for url and returns the merged metadata,
// together with the per-stage attempts for the audit trail. Finding
// nothing is not an error; the only fatal outcome is a transport failure
// on the first stage that was actually attempted, meaning the site was
// never reached at all.
func (x *Extractor) Extract(ctx context.Context, url string, platform entry.Platform, cobaltEnabled bool) (*entry.Metadata, []Attempt, error) {
	meta := &entry.Metadata{}
	var attempts []Attempt
	var fatal error
	attempted := 0

	skip := func(stage, note string) {
		attempts = append(attempts, Attempt{Stage: stage, Skipped: true, SkipNote: note})
	}
	try := func(stage string, fn func() (*entry.Metadata, error)) {
		started := time.Now()
		m, err := fn()
		attempts = append(attempts, Attempt{
			Stage:    stage,
			Err:      err,
			Duration: time.Since(started),
		})
		attempted++
		if err != nil {
			if attempted == 1 && errors.IsCategory(err, errors.CategoryNetwork) {
				fatal = err
			}
			logger.Warn("extraction stage failed", "stage", stage, "url", url, "error", err)
			return
		}
		backfillMetadata(meta, m, stage)
	}
	// The cascade keeps going while the caption or thumbnail is missing;
	// later stages only fill what is still empty.
	needMore := func() bool {
		return fatal == nil && (meta.Caption == "" || meta.ThumbnailURL == "")
	}

	// Stage 1: Instagram private web API. Richest data including the
	// embedded audio track, only applicable to Instagram posts.
	if platform == entry.PlatformInstagram {
		if !x.settings.Extraction.Instagram.Enabled {
			skip(entry.ExtractorInstagramAPI, "disabled in configuration")
		} else {
			try(entry.ExtractorInstagramAPI, func() (*entry.Metadata, error) {
				return x.extractInstagram(ctx, url)
			})
		}
	}

	// Stage 2: oEmbed. Instagram's endpoint requires app credentials, so
	// the cascade skips it for that platform.
	if needMore() {
		if platform == entry.PlatformInstagram {
			skip(entry.ExtractorOEmbed, "endpoint requires app credentials")
		} else if endpoint, ok := platform.OEmbedEndpoint(); ok {
			try(entry.ExtractorOEmbed, func() (*entry.Metadata, error) {
				return x.extractOEmbed(ctx, endpoint, url)
			})
		} else {
			skip(entry.ExtractorOEmbed, "platform has no public endpoint")
		}
	}

	// Stage 3: Open Graph scraping works on any public page.
	if needMore() {
		try(entry.ExtractorOGScrape, func() (*entry.Metadata, error) {
			return x.extractOpenGraph(ctx, url)
		})
	}

	// Stage 4: cobalt, solely to obtain a downloadable media URL when no
	// earlier stage produced one.
	if fatal == nil && meta.VideoURL == "" && meta.AudioURL == "" {
		switch {
		case !cobaltEnabled:
			skip(entry.ExtractorCobalt, "disabled by feature toggle")
		case x.settings.Extraction.Cobalt.BaseURL == "":
			skip(entry.ExtractorCobalt, "no instance configured")
		default:
			try(entry.ExtractorCobalt, func() (*entry.Metadata, error) {
				audioURL, videoURL, err := x.resolveCobalt(ctx, url)
				if err != nil {
					return nil, err
				}
				return &entry.Metadata{AudioURL: audioURL, VideoURL: videoURL}, nil
			})
		}
	}

	if fatal != nil {
		return nil, attempts, fatal
	}
	return meta, attempts, nil
}

// backfillMetadata copies fields of src that dst is still missing. The
// first stage that contributes anything names the extraction source.
func backfillMetadata(dst, src *entry.Metadata, stage string) {
	if src == nil {
		return
	}
	contributed := false
	fill := func(dstField *string, v string) {
		if *dstField == "" && v != "" {
			*dstField = v
			contributed = true
		}
	}
	fill(&dst.Title, src.Title)
	fill(&dst.Author, src.Author)
	fill(&dst.Caption, src.Caption)
	fill(&dst.ThumbnailURL, src.ThumbnailURL)
	fill(&dst.VideoURL, src.VideoURL)
	fill(&dst.AudioURL, src.AudioURL)
	if dst.EmbeddedSong == nil && src.EmbeddedSong != nil {
		dst.EmbeddedSong = src.EmbeddedSong
		contributed = true
	}
	if contributed && dst.ExtractedBy == "" {
		dst.ExtractedBy = stage
	}
}
