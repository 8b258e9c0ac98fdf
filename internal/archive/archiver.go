package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/errors"
	"github.com/jiangyuyi/feather-trace/internal/logging"
	"github.com/jiangyuyi/feather-trace/internal/observability"
	"github.com/jiangyuyi/feather-trace/internal/recognition"
	"github.com/jiangyuyi/feather-trace/internal/storage"
	"github.com/jiangyuyi/feather-trace/internal/taxonomy"
)

// Localized sentinel names used in filenames and tags.
const (
	unknownNameCN    = "未知鸟种"
	unresolvedNameCN = "未识别"
)

// Archiver moves classified crops to their final path, writes descriptive
// tags and persists the photo record.
type Archiver struct {
	provider storage.Provider
	ds       datastore.Interface
	lookup   *taxonomy.Lookup
	writer   MetadataWriter
	gen      *PathGenerator
	metrics  *observability.Metrics
	logger   *slog.Logger

	alternativesThreshold  float64
	lowConfidenceThreshold float64

	// moveMu serializes collision probing with the subsequent move; without
	// it two concurrent flushes rendering the same base path could both see
	// the path free and the second move would clobber the first photo.
	moveMu sync.Mutex
}

// NewArchiver wires the archiver. Thresholds are percentages.
func NewArchiver(provider storage.Provider, ds datastore.Interface, lookup *taxonomy.Lookup,
	writer MetadataWriter, gen *PathGenerator, metrics *observability.Metrics,
	alternativesThreshold, lowConfidenceThreshold float64) *Archiver {
	return &Archiver{
		provider:               provider,
		ds:                     ds,
		lookup:                 lookup,
		writer:                 writer,
		gen:                    gen,
		metrics:                metrics,
		logger:                 logging.ForService("archive"),
		alternativesThreshold:  alternativesThreshold,
		lowConfidenceThreshold: lowConfidenceThreshold,
	}
}

// HandleResult implements recognition.ResultFunc: it archives one classified
// batch item. By the time the tag writer runs the photo is already moved and
// recorded, so a tag-write failure is logged and does not fail ingestion.
func (a *Archiver) HandleResult(ctx context.Context, item *recognition.BatchItem, predictions []recognition.Prediction) error {
	ident := Decide(predictions, a.alternativesThreshold, a.lowConfidenceThreshold)

	commonName, familyCN := a.resolveNames(ident)

	meta := Metadata{
		CapturedDate:    item.Metadata.CapturedDate,
		LocationTag:     item.Metadata.LocationTag,
		SpeciesCN:       commonName,
		SpeciesSci:      ident.ScientificName,
		Confidence:      ident.Confidence,
		SourceStructure: item.Metadata.SourceStructure,
	}

	a.moveMu.Lock()
	finalPath := a.gen.Generate(meta, detectionFileName(item))
	finalPath = ResolveCollision(a.provider.Exists, finalPath)
	moveErr := a.provider.Move(item.CropFilePath, finalPath)
	a.moveMu.Unlock()

	if moveErr != nil {
		return errors.New(fmt.Errorf("moving crop to archive: %w", moveErr)).
			Component("archive").
			Category(errors.CategoryArchive).
			Context("final_path", finalPath).
			Build()
	}

	candidatesJSON, err := json.Marshal(predictions)
	if err != nil {
		candidatesJSON = []byte("[]")
	}

	record := &datastore.Photo{
		FilePath:       finalPath,
		Filename:       filepath.Base(finalPath),
		OriginalPath:   item.SourceEntry.Path,
		FileHash:       item.Fingerprint,
		CapturedDate:   item.Metadata.CapturedDate,
		LocationTag:    item.Metadata.LocationTag,
		CommonName:     commonName,
		ScientificName: ident.ScientificName,
		Confidence:     ident.Confidence,
		Width:          item.ImageWidth,
		Height:         item.ImageHeight,
		CandidatesJSON: string(candidatesJSON),
	}
	if err := a.ds.SavePhoto(record); err != nil {
		return errors.New(fmt.Errorf("persisting photo record: %w", err)).
			Component("archive").
			Category(errors.CategoryDatabase).
			Build()
	}

	if err := a.writer.Write(finalPath, a.buildTags(ident, commonName, familyCN, item)); err != nil {
		a.logger.Warn("tag writing failed, photo archived without tags",
			"path", finalPath, "error", err)
	}

	a.metrics.IncPhotosArchived()
	a.logger.Info("photo archived",
		"path", finalPath,
		"species", ident.ScientificName,
		"confidence", fmt.Sprintf("%.2f", ident.Confidence))
	return nil
}

// resolveNames maps the identification to localized display names.
func (a *Archiver) resolveNames(ident Identification) (commonName, familyCN string) {
	switch ident.ScientificName {
	case UnknownTaxon:
		return unknownNameCN, ""
	case UnresolvedTaxon:
		return unresolvedNameCN, ""
	}

	taxon, err := a.lookup.Get(ident.ScientificName)
	if err != nil {
		a.logger.Warn("taxonomy lookup failed", "species", ident.ScientificName, "error", err)
		return ident.ScientificName, ""
	}
	if taxon == nil || taxon.ChineseName == "" {
		return ident.ScientificName, ""
	}
	return taxon.ChineseName, taxon.FamilyCN
}

func (a *Archiver) buildTags(ident Identification, commonName, familyCN string, item *recognition.BatchItem) map[string]any {
	keywords := []string{commonName, item.Metadata.LocationTag}
	if familyCN != "" {
		keywords = append(keywords, familyCN)
	}
	keywords = append(keywords, ident.ScientificName)

	description := fmt.Sprintf("AI Identification: %s (%d%%)", commonName, int(ident.Confidence*100))
	if len(ident.Alternatives) > 0 {
		alts := make([]string, 0, len(ident.Alternatives))
		for _, alt := range ident.Alternatives {
			alts = append(alts, fmt.Sprintf("%s %d%%", alt.Label, int(alt.Confidence*100)))
		}
		description += " | alternatives: " + strings.Join(alts, ", ")
	}

	return map[string]any{
		"IPTC:Keywords":   keywords,
		"XMP:Description": description,
	}
}

// detectionFileName derives the per-detection file stem. Files yielding
// several detections get an index suffix so output names preserve detection
// order.
func detectionFileName(item *recognition.BatchItem) string {
	name := item.SourceEntry.Name
	if item.DetectionsInFile <= 1 {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%02d%s", stem, item.DetectionIndex+1, ext)
}
