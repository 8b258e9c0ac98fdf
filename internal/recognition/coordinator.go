package recognition

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/jiangyuyi/feather-trace/internal/logging"
	"github.com/jiangyuyi/feather-trace/internal/observability"
	"github.com/jiangyuyi/feather-trace/internal/scanner"
	"github.com/jiangyuyi/feather-trace/internal/storage"
	"github.com/jiangyuyi/feather-trace/internal/taxonomy"
)

// BatchItem is one cropped subject waiting for classification. It is owned
// exclusively by the coordinator's buffer between Enqueue and flush; the
// crop file is deleted on both success and failure paths.
type BatchItem struct {
	SourceEntry      storage.Entry
	Metadata         scanner.ParsedMetadata
	CropFilePath     string
	Fingerprint      string
	ImageWidth       int
	ImageHeight      int
	DetectionIndex   int
	DetectionsInFile int
	// Candidates is the taxon list this item must be classified against.
	Candidates []string
}

// ResultFunc consumes one classified item. Implementations must contain
// their own failures; the coordinator only logs what they return.
type ResultFunc func(ctx context.Context, item *BatchItem, predictions []Prediction) error

// Coordinator buffers cropped subjects across worker goroutines and flushes
// them through the recognizer in batches, amortizing label-embedding
// preparation.
//
// The buffer is partitioned by candidate-set key so every flush is
// candidate-homogeneous: concurrent producers working under different
// location contexts can never contaminate each other's batches.
type Coordinator struct {
	threshold int
	topK      int
	handle    ResultFunc
	metrics   *observability.Metrics
	logger    *slog.Logger

	// newRecognizer builds the classifier on first use; loading a model is
	// expensive and many runs dedup-skip every file.
	newRecognizer func() (Recognizer, error)
	initOnce      sync.Once
	recognizer    Recognizer
	initErr       error

	mu      sync.Mutex
	buffers map[string][]*BatchItem
}

// NewCoordinator creates a batch coordinator. threshold is the partition
// size that triggers a flush; handle receives every classified item.
func NewCoordinator(threshold, topK int, newRecognizer func() (Recognizer, error), handle ResultFunc, metrics *observability.Metrics) *Coordinator {
	if threshold < 1 {
		threshold = 1
	}
	return &Coordinator{
		threshold:     threshold,
		topK:          topK,
		handle:        handle,
		metrics:       metrics,
		newRecognizer: newRecognizer,
		logger:        logging.ForService("recognition"),
		buffers:       make(map[string][]*BatchItem),
	}
}

// Enqueue adds an item to its candidate partition. When the partition
// reaches the flush threshold the calling goroutine runs the flush itself,
// which gives the pipeline implicit back-pressure: a slow classifier
// throttles producers.
func (c *Coordinator) Enqueue(ctx context.Context, item *BatchItem) {
	key := taxonomy.CandidateKey(item.Candidates)

	c.mu.Lock()
	c.buffers[key] = append(c.buffers[key], item)
	var batch []*BatchItem
	if len(c.buffers[key]) >= c.threshold {
		batch = c.buffers[key]
		delete(c.buffers, key)
	}
	c.mu.Unlock()

	if batch != nil {
		c.processBatch(ctx, batch)
	}
}

// Drain flushes every remaining partition. It must be called after all
// producers have finished; a non-empty buffer at run end is a correctness
// bug, not a degraded mode.
func (c *Coordinator) Drain(ctx context.Context) {
	c.mu.Lock()
	remaining := c.buffers
	c.buffers = make(map[string][]*BatchItem)
	c.mu.Unlock()

	for _, batch := range remaining {
		c.processBatch(ctx, batch)
	}
}

// Pending returns the number of buffered items, for tests and diagnostics.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, batch := range c.buffers {
		n += len(batch)
	}
	return n
}

// processBatch classifies one candidate-homogeneous batch. It runs outside
// the buffer lock, so inference never blocks producers appending to other
// partitions. Crop files are always removed, even when classification
// fails, to bound disk usage.
func (c *Coordinator) processBatch(ctx context.Context, batch []*BatchItem) {
	defer c.cleanupCrops(batch)

	rec, err := c.getRecognizer()
	if err != nil {
		c.logger.Error("recognizer initialization failed, dropping batch",
			"items", len(batch), "error", err)
		return
	}

	c.metrics.IncBatchesFlushed()
	c.metrics.AddBatchItems(len(batch))

	candidates := batch[0].Candidates

	if batchRec, ok := rec.(BatchRecognizer); ok {
		paths := make([]string, len(batch))
		for i, item := range batch {
			paths[i] = item.CropFilePath
		}
		results, err := batchRec.PredictBatch(ctx, paths, candidates, c.topK)
		if err != nil {
			c.logger.Error("batch classification failed", "items", len(batch), "error", err)
			return
		}
		// One result slice per input is the PredictBatch contract; a
		// misbehaving implementation must not panic the flush path.
		if len(results) != len(batch) {
			c.logger.Error("classifier returned a mismatched result count, dropping batch",
				"want", len(batch), "got", len(results))
			return
		}
		for i, item := range batch {
			c.deliver(ctx, item, results[i])
		}
		return
	}

	for _, item := range batch {
		predictions, err := rec.Predict(ctx, item.CropFilePath, candidates, c.topK)
		if err != nil {
			c.logger.Error("classification failed",
				"file", item.SourceEntry.Name, "detection", item.DetectionIndex, "error", err)
			continue
		}
		c.deliver(ctx, item, predictions)
	}
}

func (c *Coordinator) deliver(ctx context.Context, item *BatchItem, predictions []Prediction) {
	if err := c.handle(ctx, item, predictions); err != nil {
		c.logger.Error("archiving classified item failed",
			"file", item.SourceEntry.Name, "detection", item.DetectionIndex, "error", err)
		c.metrics.IncFileErrors()
	}
}

func (c *Coordinator) getRecognizer() (Recognizer, error) {
	c.initOnce.Do(func() {
		c.recognizer, c.initErr = c.newRecognizer()
	})
	return c.recognizer, c.initErr
}

func (c *Coordinator) cleanupCrops(batch []*BatchItem) {
	for _, item := range batch {
		if item.CropFilePath == "" {
			continue
		}
		if err := os.Remove(item.CropFilePath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("cannot remove crop file", "path", item.CropFilePath, "error", err)
		}
	}
}
