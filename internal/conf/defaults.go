package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers viper defaults for every setting, so a partial
// config file still yields a complete Settings struct.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "SoundReel")
	viper.SetDefault("main.timezone", "UTC")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/soundreel.log")

	// Database settings
	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "soundreel.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "soundreel")
	viper.SetDefault("database.mysql.password", "soundreel")
	viper.SetDefault("database.mysql.database", "soundreel")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	// Web server settings
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/webserver.log")

	// Extraction settings
	viper.SetDefault("extraction.instagram.enabled", true)
	viper.SetDefault("extraction.instagram.timeout", 15*time.Second)
	viper.SetDefault("extraction.cobalt.baseurl", "")
	viper.SetDefault("extraction.cobalt.apikey", "")
	viper.SetDefault("extraction.cobalt.timeout", 30*time.Second)
	viper.SetDefault("extraction.oembedtimeout", 10*time.Second)

	// Media download settings
	viper.SetDefault("media.maxdownloadbytes", 15*1024*1024)
	viper.SetDefault("media.downloadtimeout", 30*time.Second)
	viper.SetDefault("media.maxvideoduration", 300*time.Second)

	// Audio recognition settings
	viper.SetDefault("recognition.audd.apitoken", "")
	viper.SetDefault("recognition.audd.endpoint", "https://api.audd.io/")
	viper.SetDefault("recognition.audd.timeout", 30*time.Second)

	// Generative AI settings
	viper.SetDefault("genai.backend", "googleai")
	viper.SetDefault("genai.model", "gemini-2.0-flash")
	viper.SetDefault("genai.apikey", "")
	viper.SetDefault("genai.project", "")
	viper.SetDefault("genai.location", "us-central1")
	viper.SetDefault("genai.prompttokencost", 0.10)
	viper.SetDefault("genai.candidatetokencost", 0.40)

	// Transcription settings
	viper.SetDefault("transcription.timeout", 60*time.Second)
	viper.SetDefault("transcription.maxvideoduration", 300*time.Second)

	// Music catalog settings
	viper.SetDefault("musiccatalog.spotify.clientid", "")
	viper.SetDefault("musiccatalog.spotify.clientsecret", "")
	viper.SetDefault("musiccatalog.spotify.playlistname", "SoundReel")

	// Film catalog settings
	viper.SetDefault("filmcatalog.tmdb.apikey", "")

	// Enrichment settings
	viper.SetDefault("enrich.provider", "openai")
	viper.SetDefault("enrich.openai.apikey", "")
	viper.SetDefault("enrich.openai.model", "gpt-4o-mini")
	viper.SetDefault("enrich.perplexity.apikey", "")
	viper.SetDefault("enrich.perplexity.model", "sonar")

	// Bot settings
	viper.SetDefault("bot.telegram.enabled", false)
	viper.SetDefault("bot.telegram.bottoken", "")
	viper.SetDefault("bot.telegram.webhooksecret", "")
}
