package datastore

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soundreel/soundreel-go/internal/errors"
)

// getDocument unmarshals the JSON document stored under key into out.
// Returns false when no document exists, leaving out untouched.
func (ds *DataStore) getDocument(ctx context.Context, key string, out any) (bool, error) {
	var doc ConfigDocument
	err := ds.DB.WithContext(ctx).Where("key = ?", key).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Newf("failed to read config document: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("doc_key", key).
			Build()
	}
	if err := json.Unmarshal([]byte(doc.Value), out); err != nil {
		return false, errors.Newf("failed to decode config document: %w", err).
			Component("datastore").
			Category(errors.CategoryJSONParsing).
			Context("doc_key", key).
			Build()
	}
	return true, nil
}

// saveDocument upserts the JSON document stored under key.
func (ds *DataStore) saveDocument(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Newf("failed to encode config document: %w", err).
			Component("datastore").
			Category(errors.CategoryJSONParsing).
			Context("doc_key", key).
			Build()
	}

	doc := ConfigDocument{Key: key, Value: string(data), UpdatedAt: time.Now()}
	err = ds.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return errors.Newf("failed to save config document: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("doc_key", key).
			Build()
	}
	return nil
}

// GetFeatures returns the feature toggles, falling back to defaults when no
// document has been saved.
func (ds *DataStore) GetFeatures(ctx context.Context) (Features, error) {
	features := DefaultFeatures()
	_, err := ds.getDocument(ctx, docFeatures, &features)
	return features, err
}

// SaveFeatures persists the feature toggles.
func (ds *DataStore) SaveFeatures(ctx context.Context, f Features) error {
	return ds.saveDocument(ctx, docFeatures, f)
}

// GetMusicAuth returns the persisted music catalog OAuth state.
func (ds *DataStore) GetMusicAuth(ctx context.Context) (MusicAuth, error) {
	var auth MusicAuth
	_, err := ds.getDocument(ctx, docMusicAuth, &auth)
	return auth, err
}

// SaveMusicAuth persists the music catalog OAuth state.
func (ds *DataStore) SaveMusicAuth(ctx context.Context, a MusicAuth) error {
	return ds.saveDocument(ctx, docMusicAuth, a)
}

// GetPrivateAPIConfig returns the Instagram private API session state.
func (ds *DataStore) GetPrivateAPIConfig(ctx context.Context) (PrivateAPIConfig, error) {
	var cfg PrivateAPIConfig
	_, err := ds.getDocument(ctx, docPrivateAPIConfig, &cfg)
	return cfg, err
}

// SavePrivateAPIConfig persists the Instagram private API session state.
func (ds *DataStore) SavePrivateAPIConfig(ctx context.Context, c PrivateAPIConfig) error {
	c.UpdatedAt = time.Now()
	return ds.saveDocument(ctx, docPrivateAPIConfig, c)
}

// GetEnrichConfig returns the runtime enrichment provider override.
func (ds *DataStore) GetEnrichConfig(ctx context.Context) (EnrichConfig, error) {
	var cfg EnrichConfig
	_, err := ds.getDocument(ctx, docEnrichConfig, &cfg)
	return cfg, err
}

// SaveEnrichConfig persists the runtime enrichment provider override.
func (ds *DataStore) SaveEnrichConfig(ctx context.Context, c EnrichConfig) error {
	return ds.saveDocument(ctx, docEnrichConfig, c)
}

// GetPromptConfig returns stored prompt template overrides.
func (ds *DataStore) GetPromptConfig(ctx context.Context) (PromptConfig, error) {
	cfg := PromptConfig{Overrides: map[string]string{}}
	_, err := ds.getDocument(ctx, docPromptConfig, &cfg)
	if cfg.Overrides == nil {
		cfg.Overrides = map[string]string{}
	}
	return cfg, err
}

// SavePromptConfig persists prompt template overrides.
func (ds *DataStore) SavePromptConfig(ctx context.Context, c PromptConfig) error {
	return ds.saveDocument(ctx, docPromptConfig, c)
}

// GetAPIKeys returns the issued API keys.
func (ds *DataStore) GetAPIKeys(ctx context.Context) (APIKeys, error) {
	var keys APIKeys
	_, err := ds.getDocument(ctx, docAPIKeys, &keys)
	return keys, err
}

// SaveAPIKeys persists the issued API keys.
func (ds *DataStore) SaveAPIKeys(ctx context.Context, k APIKeys) error {
	return ds.saveDocument(ctx, docAPIKeys, k)
}
