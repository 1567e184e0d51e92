package datastore

import (
	"time"

	"github.com/soundreel/soundreel-go/internal/entry"
)

// EntryRecord is the database row for one processed post. Results and the
// action log are stored as JSON documents; the normalized URL carries a
// unique index and is the idempotency key.
type EntryRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	URL       string    `gorm:"uniqueIndex;size:2048;not null"`
	Platform  string    `gorm:"size:32;index"`
	Channel   string    `gorm:"size:8"`
	Status    string    `gorm:"size:16;index"`
	Error     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Author       string `gorm:"size:256"`
	Title        string `gorm:"type:text"`
	Caption      string `gorm:"type:text"`
	ThumbnailURL string `gorm:"size:2048"`
	MediaURL     string `gorm:"size:2048"`

	Results   entry.Results         `gorm:"serializer:json;type:text"`
	ActionLog []entry.ActionLogItem `gorm:"serializer:json;type:text"`
}

// TableName overrides the default table name.
func (EntryRecord) TableName() string {
	return "entries"
}

func (r *EntryRecord) toDomain() *entry.Entry {
	return &entry.Entry{
		ID:           r.ID,
		URL:          r.URL,
		Platform:     entry.Platform(r.Platform),
		Channel:      r.Channel,
		Status:       r.Status,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Author:       r.Author,
		Title:        r.Title,
		Caption:      r.Caption,
		ThumbnailURL: r.ThumbnailURL,
		MediaURL:     r.MediaURL,
		Results:      r.Results,
		ActionLog:    r.ActionLog,
	}
}

func recordFromDomain(e *entry.Entry) *EntryRecord {
	return &EntryRecord{
		ID:           e.ID,
		URL:          e.URL,
		Platform:     string(e.Platform),
		Channel:      e.Channel,
		Status:       e.Status,
		Error:        e.Error,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		Author:       e.Author,
		Title:        e.Title,
		Caption:      e.Caption,
		ThumbnailURL: e.ThumbnailURL,
		MediaURL:     e.MediaURL,
		Results:      e.Results,
		ActionLog:    e.ActionLog,
	}
}

// ConfigDocument is a keyed JSON document for runtime configuration state
// such as feature toggles and catalog auth.
type ConfigDocument struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName overrides the default table name.
func (ConfigDocument) TableName() string {
	return "config_documents"
}

// Configuration document keys.
const (
	docFeatures         = "features"
	docMusicAuth        = "music_auth"
	docPrivateAPIConfig = "private_api_config"
	docEnrichConfig     = "enrich_config"
	docPromptConfig     = "prompt_config"
	docAPIKeys          = "api_keys"
)
