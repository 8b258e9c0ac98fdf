package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// performAutoMigration creates or updates the schema for all models.
func performAutoMigration(db *gorm.DB, debug bool) error {
	if err := db.AutoMigrate(&Photo{}, &ScanHistory{}, &Taxonomy{}); err != nil {
		return errors.New(fmt.Errorf("failed to auto-migrate database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if debug {
		log.Println("Database schema migrated")
	}
	return nil
}

// createGormLogger returns a GORM logger that stays quiet unless debugging
// is enabled; slow queries are always reported.
func createGormLogger(debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
