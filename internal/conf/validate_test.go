package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Database.SQLite.Enabled = true
	s.Database.SQLite.Path = "soundreel.db"
	s.WebServer.Enabled = true
	s.WebServer.Port = "8080"
	s.GenAI.Backend = "googleai"
	s.GenAI.Model = "gemini-2.0-flash"
	s.Enrich.Provider = "openai"
	return s
}

func TestValidateSettingsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsNil(t *testing.T) {
	t.Parallel()
	assert.Error(t, ValidateSettings(nil))
}

func TestValidateSettingsBothDatabasesEnabled(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Database.MySQL.Enabled = true
	s.Database.MySQL.Host = "localhost"
	s.Database.MySQL.Database = "soundreel"

	err := ValidateSettings(s)
	require.Error(t, err)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Errors[0], "one database backend")
}

func TestValidateSettingsBadPort(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.WebServer.Port = "not-a-port"
	assert.Error(t, ValidateSettings(s))

	s.WebServer.Enabled = false
	assert.NoError(t, ValidateSettings(s))
}

func TestValidateSettingsGenAI(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.GenAI.Backend = "bedrock"
	assert.Error(t, ValidateSettings(s))

	s = validSettings()
	s.GenAI.Backend = "vertex"
	assert.Error(t, ValidateSettings(s), "vertex requires a project")

	s.GenAI.Project = "my-project"
	assert.NoError(t, ValidateSettings(s))
}

func TestValidateSettingsEnrichProvider(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Enrich.Provider = "bing"
	assert.Error(t, ValidateSettings(s))
}
