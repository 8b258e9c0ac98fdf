// model.go this code defines the data model for the application
package datastore

import "time"

// Photo represents one archived subject crop and its identification.
// Rows are created once per archived subject and only mutated by the
// explicit manual-correction workflow.
type Photo struct {
	ID           uint   `gorm:"primaryKey"`
	FilePath     string // final archived path
	Filename     string
	OriginalPath string // path of the source file before archiving
	FileHash     string `gorm:"index:idx_photos_hash"` // dedup fingerprint
	CapturedDate string `gorm:"index:idx_photos_date"` // YYYYMMDD
	LocationTag  string `gorm:"index:idx_photos_location"`
	// CommonName is the localized species name used in filenames and tags.
	CommonName     string
	ScientificName string `gorm:"index:idx_photos_sciname"`
	Confidence     float64
	Width          int
	Height         int
	// CandidatesJSON stores the full ranked candidate list for later manual
	// correction and audit.
	CandidatesJSON string `gorm:"type:text"`
	CreatedAt      time.Time
}

// ScanHistory records one pipeline invocation. Exactly one row is written
// per run, including runs that fail midway.
type ScanHistory struct {
	ID              uint `gorm:"primaryKey"`
	StartTime       time.Time
	EndTime         time.Time
	RangeStart      string // requested YYYYMMDD bound, empty when unbounded
	RangeEnd        string
	ProcessedCount  int
	DurationSeconds float64
	Status          string `gorm:"type:varchar(20)"` // completed, failed, cancelled
}

// Taxonomy is one row of the imported IOC world bird list.
type Taxonomy struct {
	ID             uint   `gorm:"primaryKey"`
	ScientificName string `gorm:"uniqueIndex:idx_taxonomy_sciname"`
	ChineseName    string `gorm:"index:idx_taxonomy_cnname"`
	EnglishName    string
	GenusSci       string
	FamilySci      string
	FamilyCN       string
	OrderSci       string
	OrderCN        string
}
