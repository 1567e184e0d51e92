package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soundreel/soundreel-go/internal/errors"
)

// openMySQL opens the MySQL database and migrates the schema.
func (ds *DataStore) openMySQL() error {
	cfg := ds.Settings.Database.MySQL

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(ds.Settings.Debug)),
	})
	if err != nil {
		return errors.Newf("failed to open MySQL database: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("host", cfg.Host).
			Context("database", cfg.Database).
			Build()
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ds.DB = db
	return performAutoMigration(db, ds.Settings.Debug, "MySQL", dsnInfo(cfg.Host, cfg.Port, cfg.Database))
}
