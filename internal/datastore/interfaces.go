// Package datastore handles persistence of entries, their audit trails and
// the runtime configuration documents, backed by SQLite or MySQL through
// GORM.
package datastore

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/logging"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/datastore.log", "datastore", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("datastore")
	}
}

// Interface is the contract the rest of the application programs against.
type Interface interface {
	Open() error
	Close() error

	// Entries
	CreateEntry(ctx context.Context, e *entry.Entry) error
	GetEntry(ctx context.Context, id string) (*entry.Entry, error)
	FindEntryByURL(ctx context.Context, normalizedURL string) (*entry.Entry, error)
	SetEntryStatus(ctx context.Context, id, status, errMsg string) error
	SetEntryMetadata(ctx context.Context, id string, meta entry.Metadata) error
	SetEntryResults(ctx context.Context, id string, results entry.Results) error
	AppendActionLog(ctx context.Context, id string, item entry.ActionLogItem) error
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context, limit, offset int) ([]entry.Entry, error)
	CountEntries(ctx context.Context) (int64, error)

	// Configuration documents
	GetFeatures(ctx context.Context) (Features, error)
	SaveFeatures(ctx context.Context, f Features) error
	GetMusicAuth(ctx context.Context) (MusicAuth, error)
	SaveMusicAuth(ctx context.Context, a MusicAuth) error
	GetPrivateAPIConfig(ctx context.Context) (PrivateAPIConfig, error)
	SavePrivateAPIConfig(ctx context.Context, c PrivateAPIConfig) error
	GetEnrichConfig(ctx context.Context) (EnrichConfig, error)
	SaveEnrichConfig(ctx context.Context, c EnrichConfig) error
	GetPromptConfig(ctx context.Context) (PromptConfig, error)
	SavePromptConfig(ctx context.Context, c PromptConfig) error
	GetAPIKeys(ctx context.Context) (APIKeys, error)
	SaveAPIKeys(ctx context.Context, k APIKeys) error
}

// Features are runtime toggles for pipeline stages, adjustable without a
// restart.
type Features struct {
	CobaltEnabled           bool `json:"cobalt_enabled"`
	AllowDuplicateURLs      bool `json:"allow_duplicate_urls"`
	MediaAnalysisEnabled    bool `json:"media_analysis_enabled"`
	TranscriptionEnabled    bool `json:"transcription_enabled"`
	AudioRecognitionEnabled bool `json:"audio_recognition_enabled"`
	AutoEnrichEnabled       bool `json:"auto_enrich_enabled"`
}

// DefaultFeatures returns the toggles applied when no features document has
// been saved yet.
func DefaultFeatures() Features {
	return Features{
		CobaltEnabled:           false,
		AllowDuplicateURLs:      false,
		MediaAnalysisEnabled:    true,
		TranscriptionEnabled:    true,
		AudioRecognitionEnabled: true,
		AutoEnrichEnabled:       false,
	}
}

// MusicAuth holds the music catalog OAuth state shared across requests.
type MusicAuth struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	PlaylistID   string    `json:"playlist_id"`
}

// PrivateAPIConfig holds session cookies for the Instagram private web API.
type PrivateAPIConfig struct {
	Cookies   map[string]string `json:"cookies"`
	UserAgent string            `json:"user_agent"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// EnrichConfig overrides the configured enrichment provider at runtime.
type EnrichConfig struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// PromptConfig holds per-prompt template overrides, keyed by prompt name.
type PromptConfig struct {
	Overrides map[string]string `json:"overrides"`
}

// APIKey is a single issued API key for the read API.
type APIKey struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (k APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// APIKeys is the set of issued API keys.
type APIKeys struct {
	Keys []APIKey `json:"keys"`
}

// DataStore implements Interface against a GORM-managed database.
type DataStore struct {
	DB       *gorm.DB
	Settings *conf.Settings
}

// New creates the appropriate database backend based on the settings.
func New(settings *conf.Settings) *DataStore {
	return &DataStore{Settings: settings}
}

// Open initializes the database connection and migrates the schema.
func (ds *DataStore) Open() error {
	switch {
	case ds.Settings.Database.SQLite.Enabled:
		return ds.openSQLite()
	case ds.Settings.Database.MySQL.Enabled:
		return ds.openMySQL()
	default:
		return errNoBackend
	}
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
