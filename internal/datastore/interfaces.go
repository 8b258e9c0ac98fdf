// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jiangyuyi/feather-trace/internal/conf"
	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// Interface abstracts the underlying database implementation and defines
// the operations the pipeline needs.
type Interface interface {
	Open() error
	Close() error

	SavePhoto(photo *Photo) error
	MediaExists(fileHash string) (bool, error)
	UpdatePhotoSpecies(photoID uint, scientificName, commonName string) error

	GetAllLabels() ([]string, error)
	GetTaxon(scientificName string) (*Taxonomy, error)
	InsertTaxa(taxa []Taxonomy) (int, error)
	CountTaxa() (int64, error)

	SaveScanHistory(record *ScanHistory) error
	GetRecentScans(limit int) ([]ScanHistory, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	if settings.Output.SQLite.Enabled {
		return &SQLiteStore{Settings: settings}
	}
	return nil
}

// lockRetry controls retries when the persistence layer reports contention.
const (
	lockRetryAttempts = 5
	lockRetryDelay    = 500 * time.Millisecond
)

// isLockedErr reports whether an error indicates SQLite lock contention.
func isLockedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// withLockRetry runs op, retrying with a delay while the database reports
// lock contention, before surfacing the error as fatal.
func withLockRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < lockRetryAttempts; attempt++ {
		err = op()
		if !isLockedErr(err) {
			return err
		}
		time.Sleep(lockRetryDelay)
	}
	return errors.New(fmt.Errorf("database remained locked after %d attempts: %w", lockRetryAttempts, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}

// SavePhoto stores one archived photo record.
func (ds *DataStore) SavePhoto(photo *Photo) error {
	return withLockRetry(func() error {
		return ds.DB.Create(photo).Error
	})
}

// MediaExists reports whether a photo with the given fingerprint has
// already been archived.
func (ds *DataStore) MediaExists(fileHash string) (bool, error) {
	if fileHash == "" {
		return false, nil
	}
	var count int64
	err := ds.DB.Model(&Photo{}).Where("file_hash = ?", fileHash).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdatePhotoSpecies applies a manual identification correction.
func (ds *DataStore) UpdatePhotoSpecies(photoID uint, scientificName, commonName string) error {
	return withLockRetry(func() error {
		return ds.DB.Model(&Photo{}).Where("id = ?", photoID).Updates(map[string]any{
			"scientific_name": scientificName,
			"common_name":     commonName,
			"confidence":      1.0,
		}).Error
	})
}

// GetAllLabels returns every scientific name in the taxonomy table.
func (ds *DataStore) GetAllLabels() ([]string, error) {
	var labels []string
	err := ds.DB.Model(&Taxonomy{}).Order("id").Pluck("scientific_name", &labels).Error
	if err != nil {
		return nil, err
	}
	return labels, nil
}

// GetTaxon looks up one taxonomy row by scientific name. Returns
// gorm.ErrRecordNotFound when the taxon is unknown.
func (ds *DataStore) GetTaxon(scientificName string) (*Taxonomy, error) {
	var taxon Taxonomy
	err := ds.DB.Where("scientific_name = ?", scientificName).First(&taxon).Error
	if err != nil {
		return nil, err
	}
	return &taxon, nil
}

// InsertTaxa bulk-inserts taxonomy rows, skipping duplicates, and returns
// the number of rows written.
func (ds *DataStore) InsertTaxa(taxa []Taxonomy) (int, error) {
	if len(taxa) == 0 {
		return 0, nil
	}
	inserted := 0
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range taxa {
			res := tx.Where("scientific_name = ?", taxa[i].ScientificName).
				FirstOrCreate(&taxa[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	return inserted, err
}

// CountTaxa returns the number of taxonomy rows.
func (ds *DataStore) CountTaxa() (int64, error) {
	var count int64
	err := ds.DB.Model(&Taxonomy{}).Count(&count).Error
	return count, err
}

// SaveScanHistory appends one run record.
func (ds *DataStore) SaveScanHistory(record *ScanHistory) error {
	return withLockRetry(func() error {
		return ds.DB.Create(record).Error
	})
}

// GetRecentScans returns the most recent run records, newest first.
func (ds *DataStore) GetRecentScans(limit int) ([]ScanHistory, error) {
	var scans []ScanHistory
	err := ds.DB.Order("id DESC").Limit(limit).Find(&scans).Error
	return scans, err
}
