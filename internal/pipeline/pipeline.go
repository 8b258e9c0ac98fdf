// Package pipeline orchestrates one ingestion run: scanning, deduplication,
// detection, cropping, batched recognition and archival bookkeeping.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jiangyuyi/feather-trace/internal/conf"
	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/dedup"
	"github.com/jiangyuyi/feather-trace/internal/detection"
	"github.com/jiangyuyi/feather-trace/internal/errors"
	"github.com/jiangyuyi/feather-trace/internal/imaging"
	"github.com/jiangyuyi/feather-trace/internal/logging"
	"github.com/jiangyuyi/feather-trace/internal/observability"
	"github.com/jiangyuyi/feather-trace/internal/recognition"
	"github.com/jiangyuyi/feather-trace/internal/scanner"
	"github.com/jiangyuyi/feather-trace/internal/storage"
	"github.com/jiangyuyi/feather-trace/internal/taxonomy"
)

// Run statuses recorded in scan history.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Pipeline wires the ingestion components together. All collaborators are
// injected at construction; the pipeline holds no hidden global state.
type Pipeline struct {
	settings    *conf.Settings
	ds          datastore.Interface
	provider    storage.Provider
	detector    detection.Detector
	coordinator *recognition.Coordinator
	metrics     *observability.Metrics
	logger      *slog.Logger

	// sharpness scores focus quality; swappable in tests.
	sharpness func(path string) (float64, error)

	labels    []string
	allowlist []string
	foreign   []string

	processed atomic.Int64
}

// New constructs a pipeline.
func New(settings *conf.Settings, ds datastore.Interface, provider storage.Provider,
	detector detection.Detector, coordinator *recognition.Coordinator,
	metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		settings:    settings,
		ds:          ds,
		provider:    provider,
		detector:    detector,
		coordinator: coordinator,
		metrics:     metrics,
		logger:      logging.ForService("pipeline"),
		sharpness:   imaging.Sharpness,
	}
}

// Run executes one ingestion pass over all configured sources. startDate
// and endDate are optional YYYYMMDD bounds used both for scan pruning and
// run bookkeeping. Exactly one scan-history record is written per call,
// also on failure and cancellation.
func (p *Pipeline) Run(ctx context.Context, startDate, endDate string) error {
	runID := uuid.NewString()[:8]
	startTime := time.Now()
	p.processed.Store(0)
	p.logger.Info("ingestion run starting",
		"run_id", runID, "range_start", startDate, "range_end", endDate)

	var runErr error
	defer func() {
		p.recordRun(startTime, startDate, endDate, runErr, ctx.Err())
	}()

	if err := conf.ValidateSettings(p.settings); err != nil {
		runErr = err
		return err
	}

	// No taxonomy labels is configuration-fatal: abort before scanning.
	labels, err := taxonomy.LoadLabels(p.ds, p.settings.Taxonomy.IOCSpreadsheetPath)
	if err != nil {
		runErr = err
		return err
	}
	p.labels = labels
	p.allowlist = taxonomy.LoadNameList(p.settings.Recognition.AllowlistPath)
	p.foreign = taxonomy.LoadNameList(p.settings.Recognition.ForeignListPath)

	tempDir, cleanup, err := p.tempWorkspace()
	if err != nil {
		runErr = err
		return err
	}
	defer cleanup()

	for _, src := range p.settings.Sources {
		if ctx.Err() != nil {
			break
		}
		if err := p.runSource(ctx, src, startDate, endDate, tempDir); err != nil {
			runErr = err
			break
		}
	}

	// Drain the batch buffer after all producers are done; leftover items
	// at run end would be lost work.
	p.coordinator.Drain(ctx)

	if ctx.Err() != nil {
		runErr = errors.New(ctx.Err()).
			Component("pipeline").
			Category(errors.CategoryCancellation).
			Build()
		return runErr
	}
	if runErr != nil {
		return runErr
	}

	p.logger.Info("ingestion run finished",
		"run_id", runID,
		"processed", p.processed.Load(),
		"duration", time.Since(startTime).Round(time.Millisecond).String())
	return nil
}

// runSource scans one source root and feeds its files to the worker pool.
func (p *Pipeline) runSource(ctx context.Context, src conf.Source, startDate, endDate, tempDir string) error {
	parser, err := scanner.NewPathParser(src.Path, src.Pattern)
	if err != nil {
		return errors.New(fmt.Errorf("invalid pattern for source %s: %w", src.Path, err)).
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	entries := p.sourceEntries(ctx, src, startDate, endDate)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Processing.Workers)

	for entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Per-file failures are contained here; they must never abort
			// the run or other in-flight work.
			if err := p.processFile(gctx, entry, parser, tempDir); err != nil {
				p.logger.Error("file processing failed", "file", entry.Path, "error", err)
				p.metrics.IncFileErrors()
			}
			return nil
		})
	}

	return g.Wait()
}

// sourceEntries yields this source's files: the pruning tree walk for
// recursive sources, a flat listing otherwise.
func (p *Pipeline) sourceEntries(ctx context.Context, src conf.Source, startDate, endDate string) <-chan storage.Entry {
	if src.Recursive {
		return scanner.NewScanner(p.provider).Scan(ctx, src.Path, startDate, endDate)
	}

	out := make(chan storage.Entry)
	go func() {
		defer close(out)
		listed, err := p.provider.List(src.Path, false)
		if err != nil {
			p.logger.Warn("cannot list source", "path", src.Path, "error", err)
			return
		}
		for _, entry := range listed {
			if entry.IsDir {
				continue
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// imageExtensions lists the photo formats the pipeline ingests.
var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {},
}

func isImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// processFile handles one file end to end up to the enqueue: metadata
// parsing, dedup short-circuit, detection and cropping.
func (p *Pipeline) processFile(ctx context.Context, entry storage.Entry, parser *scanner.PathParser, tempDir string) error {
	if !isImageFile(entry.Name) {
		return nil
	}
	p.metrics.IncFilesScanned()

	meta := parser.Parse(entry.Path)

	localPath, isLocal := p.provider.LocalPath(entry.Path)
	if !isLocal {
		downloaded, err := p.downloadToTemp(entry, tempDir)
		if err != nil {
			return err
		}
		defer os.Remove(downloaded)
		localPath = downloaded
	}

	fingerprint, err := dedup.FingerprintFile(localPath)
	if err != nil {
		return errors.New(fmt.Errorf("fingerprinting: %w", err)).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			FileContext(entry.Path, entry.SizeBytes).
			Build()
	}

	// Highest-leverage short-circuit: skip before any detection work.
	exists, err := p.ds.MediaExists(fingerprint)
	if err != nil {
		return err
	}
	if exists {
		p.logger.Debug("skipping already archived file", "file", entry.Name)
		p.metrics.IncDuplicatesSkipped()
		return nil
	}

	if threshold := p.settings.Processing.BlurThreshold; threshold > 0 {
		score, err := p.sharpness(localPath)
		if err != nil {
			return err
		}
		if score < threshold {
			p.logger.Warn("skipping blurry file",
				"file", entry.Name,
				"sharpness", fmt.Sprintf("%.2f", score),
				"threshold", threshold)
			p.metrics.IncBlurrySkipped()
			return nil
		}
	}

	boxes, err := p.detector.Detect(ctx, localPath)
	if err != nil {
		return err
	}
	p.metrics.AddDetections(len(boxes))
	if len(boxes) == 0 {
		p.logger.Debug("no subjects detected", "file", entry.Name)
		p.processed.Add(1)
		return nil
	}

	candidates := taxonomy.SelectCandidates(
		p.labels, meta.LocationTag, p.settings.Recognition.Mode, p.allowlist, p.foreign)

	var cropErrs []error
	for i, box := range boxes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cropPath := filepath.Join(tempDir,
			fmt.Sprintf("crop_%s_%02d.jpg", uuid.NewString()[:8], i))
		width, height, err := imaging.CropResize(localPath, box, cropPath,
			p.settings.Processing.TargetSize, p.settings.Processing.CropPadding)
		if err != nil {
			cropErrs = append(cropErrs, err)
			continue
		}

		p.coordinator.Enqueue(ctx, &recognition.BatchItem{
			SourceEntry:      entry,
			Metadata:         meta,
			CropFilePath:     cropPath,
			Fingerprint:      fingerprint,
			ImageWidth:       width,
			ImageHeight:      height,
			DetectionIndex:   i,
			DetectionsInFile: len(boxes),
			Candidates:       candidates,
		})
	}

	p.processed.Add(1)
	return errors.Join(cropErrs...)
}

func (p *Pipeline) downloadToTemp(entry storage.Entry, tempDir string) (string, error) {
	data, err := p.provider.ReadBytes(entry.Path)
	if err != nil {
		return "", errors.New(fmt.Errorf("downloading %s: %w", entry.Name, err)).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			Build()
	}
	dst := filepath.Join(tempDir, fmt.Sprintf("src_%s_%s", uuid.NewString()[:8], entry.Name))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

func (p *Pipeline) tempWorkspace() (string, func(), error) {
	if configured := p.settings.Processing.TempDir; configured != "" {
		if err := os.MkdirAll(configured, 0o755); err != nil {
			return "", nil, err
		}
		return configured, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "feathertrace-*")
	if err != nil {
		return "", nil, errors.New(fmt.Errorf("creating temp workspace: %w", err)).
			Component("pipeline").
			Category(errors.CategoryFileIO).
			Build()
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// recordRun writes the scan-history record. It runs on every exit path so
// failed and cancelled runs are still accounted for.
func (p *Pipeline) recordRun(startTime time.Time, rangeStart, rangeEnd string, runErr, ctxErr error) {
	status := StatusCompleted
	switch {
	case ctxErr != nil:
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}

	endTime := time.Now()
	record := &datastore.ScanHistory{
		StartTime:       startTime,
		EndTime:         endTime,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		ProcessedCount:  int(p.processed.Load()),
		DurationSeconds: endTime.Sub(startTime).Seconds(),
		Status:          status,
	}
	if err := p.ds.SaveScanHistory(record); err != nil {
		p.logger.Error("cannot write scan history record", "error", err)
	}
}
