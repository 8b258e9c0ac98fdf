// Package observability exposes Prometheus metrics for the ingestion
// pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus instruments. A nil *Metrics is
// valid and turns all recording into no-ops, which keeps tests quiet.
type Metrics struct {
	FilesScanned      prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	BlurrySkipped     prometheus.Counter
	DetectionsTotal   prometheus.Counter
	BatchesFlushed    prometheus.Counter
	BatchItemsTotal   prometheus.Counter
	PhotosArchived    prometheus.Counter
	FileErrors        prometheus.Counter
}

// NewMetrics registers the pipeline metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_files_scanned_total",
			Help: "Number of source files the scanner yielded.",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_duplicates_skipped_total",
			Help: "Number of files skipped by the deduplication index.",
		}),
		BlurrySkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_blurry_skipped_total",
			Help: "Number of files rejected by the sharpness gate.",
		}),
		DetectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_detections_total",
			Help: "Number of subject boxes returned by the detector.",
		}),
		BatchesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_batches_flushed_total",
			Help: "Number of recognition batches flushed.",
		}),
		BatchItemsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_batch_items_total",
			Help: "Number of cropped subjects submitted for recognition.",
		}),
		PhotosArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_photos_archived_total",
			Help: "Number of photo records archived.",
		}),
		FileErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feathertrace_file_errors_total",
			Help: "Number of per-file errors that were contained.",
		}),
	}
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

func add(c prometheus.Counter, n int) {
	if c != nil && n > 0 {
		c.Add(float64(n))
	}
}

// IncFilesScanned records one scanned file.
func (m *Metrics) IncFilesScanned() {
	if m != nil {
		inc(m.FilesScanned)
	}
}

// IncDuplicatesSkipped records one dedup short-circuit.
func (m *Metrics) IncDuplicatesSkipped() {
	if m != nil {
		inc(m.DuplicatesSkipped)
	}
}

// IncBlurrySkipped records one file rejected by the sharpness gate.
func (m *Metrics) IncBlurrySkipped() {
	if m != nil {
		inc(m.BlurrySkipped)
	}
}

// AddDetections records boxes returned for one file.
func (m *Metrics) AddDetections(n int) {
	if m != nil {
		add(m.DetectionsTotal, n)
	}
}

// IncBatchesFlushed records one coordinator flush.
func (m *Metrics) IncBatchesFlushed() {
	if m != nil {
		inc(m.BatchesFlushed)
	}
}

// AddBatchItems records items classified in one flush.
func (m *Metrics) AddBatchItems(n int) {
	if m != nil {
		add(m.BatchItemsTotal, n)
	}
}

// IncPhotosArchived records one archived photo.
func (m *Metrics) IncPhotosArchived() {
	if m != nil {
		inc(m.PhotosArchived)
	}
}

// IncFileErrors records one contained per-file error.
func (m *Metrics) IncFileErrors() {
	if m != nil {
		inc(m.FileErrors)
	}
}
