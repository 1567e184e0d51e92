// Package runtime assembles the application: configuration, datastore,
// pipeline components and the HTTP server, wired once and shared by the
// CLI commands.
package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundreel/soundreel-go/internal/analysis"
	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/datastore"
	"github.com/soundreel/soundreel-go/internal/enrich"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/extractor"
	"github.com/soundreel/soundreel-go/internal/filmcatalog"
	"github.com/soundreel/soundreel-go/internal/fingerprint"
	"github.com/soundreel/soundreel-go/internal/genai"
	"github.com/soundreel/soundreel-go/internal/httpclient"
	"github.com/soundreel/soundreel-go/internal/httpcontroller"
	"github.com/soundreel/soundreel-go/internal/logging"
	"github.com/soundreel/soundreel-go/internal/media"
	"github.com/soundreel/soundreel-go/internal/musiccatalog"
	"github.com/soundreel/soundreel-go/internal/processor"
	"github.com/soundreel/soundreel-go/internal/prompts"
)

// App holds the wired application components.
type App struct {
	Settings  *conf.Settings
	Store     datastore.Interface
	Processor *processor.Processor
	Server    *httpcontroller.Server

	extractor *extractor.Extractor
}

// NewApp wires every component from settings. The datastore is opened and
// must be released with Close.
func NewApp(settings *conf.Settings) (*App, error) {
	logging.Init()

	if err := conf.ValidateSettings(settings); err != nil {
		return nil, err
	}

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return nil, errors.Newf("failed to open datastore: %w", err).
			Component("runtime").
			Category(errors.CategoryDatabase).
			Build()
	}

	client := httpclient.New(nil)
	loader := prompts.NewLoader(store)

	generator, err := genai.New(settings, client)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ext := extractor.New(settings, client, store)

	proc := &processor.Processor{
		Settings:    settings,
		Store:       store,
		Extractor:   ext,
		Downloader:  media.NewDownloader(settings, client),
		Recognizer:  fingerprint.New(settings, client),
		Analyzer:    analysis.NewAnalyzer(settings, generator, loader),
		Transcriber: analysis.NewTranscriber(settings, generator, loader),
		Songs:       musiccatalog.New(settings, client, store),
		Films:       filmcatalog.New(settings, client),
		NewEnricher: func(override datastore.EnrichConfig) (enrich.Provider, error) {
			return enrich.NewProvider(settings, client, loader, override)
		},
	}

	app := &App{
		Settings:  settings,
		Store:     store,
		Processor: proc,
		extractor: ext,
	}
	if settings.WebServer.Enabled {
		app.Server = httpcontroller.New(settings, store, proc, ext, loader, client)
	}
	return app, nil
}

// RunServer starts the HTTP server and blocks until the context is
// cancelled or SIGINT/SIGTERM arrives, then shuts down gracefully.
func (a *App) RunServer(ctx context.Context) error {
	if a.Server == nil {
		return errors.Newf("webserver is disabled in configuration").
			Component("runtime").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return a.Server.Shutdown(context.Background())
	}
}

// Close releases held resources.
func (a *App) Close() error {
	return a.Store.Close()
}
