package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/soundreel/soundreel-go/internal/entry"
	"github.com/soundreel/soundreel-go/internal/errors"
)

var errNoBackend = errors.Newf("no database backend enabled in configuration").
	Component("datastore").
	Category(errors.CategoryConfiguration).
	Build()

// performAutoMigration migrates the schema and logs outcome.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&EntryRecord{}, &ConfigDocument{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", dbType, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}
	if debug {
		logger.Debug("database connection established", "db_type", dbType, "connection", connectionInfo)
	}
	return nil
}

// CreateEntry inserts a new entry. A unique-constraint violation on the URL
// surfaces as a database-category error so callers can treat concurrent
// submissions of the same URL as duplicates.
func (ds *DataStore) CreateEntry(ctx context.Context, e *entry.Entry) error {
	if e.ID == "" {
		return errors.Newf("entry ID must be set before create").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	if err := ds.DB.WithContext(ctx).Create(recordFromDomain(e)).Error; err != nil {
		return errors.Newf("failed to create entry: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("entry_id", e.ID).
			Build()
	}
	return nil
}

// GetEntry fetches an entry by ID.
func (ds *DataStore) GetEntry(ctx context.Context, id string) (*entry.Entry, error) {
	var record EntryRecord
	err := ds.DB.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("entry not found: %s", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("entry_id", id).
				Build()
		}
		return nil, errors.Newf("failed to get entry: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("entry_id", id).
			Build()
	}
	return record.toDomain(), nil
}

// FindEntryByURL fetches an entry by its normalized URL. Returns a
// not-found error when no entry exists for the URL.
func (ds *DataStore) FindEntryByURL(ctx context.Context, normalizedURL string) (*entry.Entry, error) {
	var record EntryRecord
	err := ds.DB.WithContext(ctx).Where("url = ?", normalizedURL).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("no entry for url").
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("url", normalizedURL).
				Build()
		}
		return nil, errors.Newf("failed to find entry by url: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return record.toDomain(), nil
}

// SetEntryStatus updates an entry's status and error message.
func (ds *DataStore) SetEntryStatus(ctx context.Context, id, status, errMsg string) error {
	return ds.updateEntryColumns(ctx, id, map[string]any{
		"status": status,
		"error":  errMsg,
	})
}

// SetEntryMetadata stores the display fields produced by the extraction
// cascade.
func (ds *DataStore) SetEntryMetadata(ctx context.Context, id string, meta entry.Metadata) error {
	return ds.updateEntryColumns(ctx, id, map[string]any{
		"author":        meta.Author,
		"title":         meta.Title,
		"caption":       meta.Caption,
		"thumbnail_url": meta.ThumbnailURL,
		"media_url":     meta.VideoURL,
	})
}

// SetEntryResults replaces an entry's results document. The column update
// goes through a map, which bypasses the model's JSON serializer, so the
// document is marshalled here.
func (ds *DataStore) SetEntryResults(ctx context.Context, id string, results entry.Results) error {
	encoded, err := json.Marshal(results)
	if err != nil {
		return errors.Newf("failed to encode results: %w", err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("entry_id", id).
			Build()
	}
	return ds.updateEntryColumns(ctx, id, map[string]any{
		"results": string(encoded),
	})
}

func (ds *DataStore) updateEntryColumns(ctx context.Context, id string, columns map[string]any) error {
	columns["updated_at"] = time.Now()
	result := ds.DB.WithContext(ctx).Model(&EntryRecord{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return errors.Newf("failed to update entry: %w", result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("entry_id", id).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("entry not found: %s", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("entry_id", id).
			Build()
	}
	return nil
}

// AppendActionLog appends one audit record to the entry's action log. The
// read-modify-write runs in a transaction so concurrent stages cannot drop
// each other's records.
func (ds *DataStore) AppendActionLog(ctx context.Context, id string, item entry.ActionLogItem) error {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record EntryRecord
		if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		// Marshalled by hand: a map update skips the model's serializer.
		encoded, err := json.Marshal(append(record.ActionLog, item))
		if err != nil {
			return err
		}
		return tx.Model(&EntryRecord{}).Where("id = ?", id).Updates(map[string]any{
			"action_log": string(encoded),
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Newf("entry not found: %s", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("entry_id", id).
				Build()
		}
		return errors.Newf("failed to append action log: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("entry_id", id).
			Context("action", item.Action).
			Build()
	}
	return nil
}

// DeleteEntry removes an entry and its audit trail.
func (ds *DataStore) DeleteEntry(ctx context.Context, id string) error {
	result := ds.DB.WithContext(ctx).Where("id = ?", id).Delete(&EntryRecord{})
	if result.Error != nil {
		return errors.Newf("failed to delete entry: %w", result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("entry_id", id).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("entry not found: %s", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("entry_id", id).
			Build()
	}
	return nil
}

// ListEntries returns entries newest first. limit <= 0 defaults to 50.
func (ds *DataStore) ListEntries(ctx context.Context, limit, offset int) ([]entry.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var records []EntryRecord
	err := ds.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, errors.Newf("failed to list entries: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	entries := make([]entry.Entry, 0, len(records))
	for i := range records {
		entries = append(entries, *records[i].toDomain())
	}
	return entries, nil
}

// CountEntries returns the total number of entries.
func (ds *DataStore) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	if err := ds.DB.WithContext(ctx).Model(&EntryRecord{}).Count(&count).Error; err != nil {
		return 0, errors.Newf("failed to count entries: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

// ensure interface compliance at compile time
var _ Interface = (*DataStore)(nil)

func dsnInfo(host, port, database string) string {
	return fmt.Sprintf("%s:%s/%s", host, port, database)
}
