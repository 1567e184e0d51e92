package datastore

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soundreel/soundreel-go/internal/errors"
)

// openSQLite opens the SQLite database, creating the containing directory
// and migrating the schema.
func (ds *DataStore) openSQLite() error {
	dbPath := ds.Settings.Database.SQLite.Path

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Newf("failed to create database directory: %w", err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("path", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(ds.Settings.Debug)),
	})
	if err != nil {
		return errors.Newf("failed to open SQLite database: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", dbPath).
			Build()
	}

	// SQLite allows one writer at a time; the busy timeout keeps concurrent
	// pipeline stages from failing instead of waiting.
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ds.DB = db
	return performAutoMigration(db, ds.Settings.Debug, "SQLite", dbPath)
}

func gormLogLevel(debug bool) gormlogger.LogLevel {
	if debug {
		return gormlogger.Info
	}
	return gormlogger.Warn
}
