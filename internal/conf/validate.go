package conf

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidationError holds a list of validation failures found in the settings.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("settings validation failed: %d error(s)", len(ve.Errors))
}

// ValidateSettings checks the loaded settings for inconsistencies that would
// break the pipeline at runtime.
func ValidateSettings(settings *Settings) error {
	if settings == nil {
		return errors.New("settings is nil")
	}

	ve := ValidationError{}

	validateDatabase(&settings.Database, &ve)
	validateWebServer(&settings.WebServer, &ve)
	validateGenAI(&settings.GenAI, &ve)
	validateEnrich(&settings.Enrich, &ve)

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabase(db *DatabaseSettings, ve *ValidationError) {
	if db.SQLite.Enabled && db.MySQL.Enabled {
		ve.Errors = append(ve.Errors, "only one database backend can be enabled at a time")
	}
	if !db.SQLite.Enabled && !db.MySQL.Enabled {
		ve.Errors = append(ve.Errors, "one database backend must be enabled")
	}
	if db.SQLite.Enabled && db.SQLite.Path == "" {
		ve.Errors = append(ve.Errors, "database.sqlite.path must be set")
	}
	if db.MySQL.Enabled {
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			ve.Errors = append(ve.Errors, "database.mysql.host and database.mysql.database must be set")
		}
	}
}

func validateWebServer(ws *WebServerSettings, ve *ValidationError) {
	if !ws.Enabled {
		return
	}
	port, err := strconv.Atoi(ws.Port)
	if err != nil || port < 1 || port > 65535 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("webserver.port must be a valid port number, got %q", ws.Port))
	}
}

func validateGenAI(g *GenAISettings, ve *ValidationError) {
	switch g.Backend {
	case "googleai", "vertex":
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("genai.backend must be googleai or vertex, got %q", g.Backend))
	}
	if g.Backend == "vertex" && g.Project == "" {
		ve.Errors = append(ve.Errors, "genai.project must be set when genai.backend is vertex")
	}
	if g.Model == "" {
		ve.Errors = append(ve.Errors, "genai.model must be set")
	}
}

func validateEnrich(e *EnrichSettings, ve *ValidationError) {
	switch e.Provider {
	case "openai", "perplexity":
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("enrich.provider must be openai or perplexity, got %q", e.Provider))
	}
}
