// Package conf handles loading and managing application configuration. It
// reads config.yaml through viper, applies defaults, and exposes the merged
// Settings to the rest of the application.
package conf

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/soundreel/soundreel-go/internal/logging"
)

//go:embed config.yaml
var defaultConfig []byte

// envPrefix is the prefix for environment variable overrides, so
// SOUNDREEL_WEBSERVER_PORT overrides webserver.port.
const envPrefix = "SOUNDREEL"

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/config.log", "config", slog.LevelInfo)
	if err != nil || logger == nil {
		logger = logging.NopLogger("config")
	}
}

// MainSettings holds top-level application settings.
type MainSettings struct {
	Name     string      // instance name, shown in logs and bot replies
	TimeZone string      // IANA zone for display timestamps
	Log      LogSettings // main application log file
}

// LogSettings describes a log file destination.
type LogSettings struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

// DatabaseSettings selects and configures the output database. Exactly one
// backend should be enabled.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// WebServerSettings configures the HTTP API server.
type WebServerSettings struct {
	Enabled bool
	Port    string
	Log     LogSettings
}

// InstagramSettings configures the Instagram private web API client.
// Session cookies live in the datastore, not here.
type InstagramSettings struct {
	Enabled bool
	Timeout time.Duration
}

// CobaltSettings configures the cobalt media downloader fallback.
type CobaltSettings struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ExtractionSettings groups the metadata extraction cascade configuration.
type ExtractionSettings struct {
	Instagram     InstagramSettings
	Cobalt        CobaltSettings
	OEmbedTimeout time.Duration
}

// MediaSettings bounds media downloads performed for analysis.
type MediaSettings struct {
	MaxDownloadBytes int64
	DownloadTimeout  time.Duration
	MaxVideoDuration time.Duration
}

// RecognitionSettings configures the audio fingerprinting provider.
type RecognitionSettings struct {
	AudD AudDSettings
}

// AudDSettings holds AudD API configuration.
type AudDSettings struct {
	APIToken string
	Endpoint string
	Timeout  time.Duration
}

// GenAISettings configures the multimodal generation backend. Backend is
// either "googleai" (API key) or "vertex" (application default credentials).
type GenAISettings struct {
	Backend  string
	Model    string
	APIKey   string
	Project  string
	Location string

	// USD per million tokens, used for per-call cost accounting.
	PromptTokenCost    float64
	CandidateTokenCost float64
}

// TranscriptionSettings bounds speech transcription of downloaded media.
type TranscriptionSettings struct {
	Timeout          time.Duration
	MaxVideoDuration time.Duration
}

// SpotifySettings holds the Spotify catalog credentials. The refresh token
// and its derived access token are persisted in the datastore.
type SpotifySettings struct {
	ClientID     string
	ClientSecret string
	PlaylistName string
}

// MusicCatalogSettings groups music catalog resolution configuration.
type MusicCatalogSettings struct {
	Spotify SpotifySettings
}

// TMDBSettings holds The Movie Database API configuration.
type TMDBSettings struct {
	APIKey string
}

// FilmCatalogSettings groups film catalog resolution configuration.
type FilmCatalogSettings struct {
	TMDB TMDBSettings
}

// OpenAISettings configures the OpenAI enrichment provider.
type OpenAISettings struct {
	APIKey string
	Model  string
}

// PerplexitySettings configures the Perplexity enrichment provider.
type PerplexitySettings struct {
	APIKey string
	Model  string
}

// EnrichSettings selects and configures the enrichment provider.
type EnrichSettings struct {
	Provider   string // "openai" or "perplexity"
	OpenAI     OpenAISettings
	Perplexity PerplexitySettings
}

// TelegramSettings configures the Telegram bot webhook.
type TelegramSettings struct {
	Enabled       bool
	BotToken      string
	WebhookSecret string
}

// BotSettings groups chat bot integrations.
type BotSettings struct {
	Telegram TelegramSettings
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool

	Main          MainSettings
	Database      DatabaseSettings
	WebServer     WebServerSettings
	Extraction    ExtractionSettings
	Media         MediaSettings
	Recognition   RecognitionSettings
	GenAI         GenAISettings
	Transcription TranscriptionSettings
	MusicCatalog  MusicCatalogSettings
	FilmCatalog   FilmCatalogSettings
	Enrich        EnrichSettings
	Bot           BotSettings
}

// Load reads the configuration from disk, creating a default config file on
// first run, and returns the merged settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

func initViper() error {
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetConfigName("config")

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		configPath, createErr := createDefaultConfig(configPaths)
		if createErr != nil {
			return createErr
		}
		logger.Info("created default config file", "path", configPath)
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading newly created config file: %w", err)
		}
	}

	return nil
}

// createDefaultConfig writes the embedded default config.yaml to the first
// usable config path and returns the file path.
func createDefaultConfig(configPaths []string) (string, error) {
	if len(configPaths) == 0 {
		return "", fmt.Errorf("no config paths available")
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return "", fmt.Errorf("error writing default config file: %w", err)
	}
	return configPath, nil
}

// GetDefaultConfigPaths returns the ordered list of directories searched for
// config.yaml: the current directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "soundreel"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "soundreel"))
	}
	return paths, nil
}

// Setting returns the shared Settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				logger.Error("error loading settings", "error", err)
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetTestSettings replaces the shared settings instance. Test helper only.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
	once.Do(func() {})
}
