// Package detection locates subjects in full images through an external
// detector service.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jiangyuyi/feather-trace/internal/errors"
	"github.com/jiangyuyi/feather-trace/internal/logging"
)

// Box is one detected subject bounding box in pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 float64
	Confidence     float64
}

// Detector locates subject bounding boxes in a full image. A single image
// may yield zero or many boxes.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Box, error)
}

// maxAttempts bounds the adapter's own retries; the pipeline never retries
// detection.
const maxAttempts = 3

// ServiceDetector calls a detection REST service. A failed accelerated call
// is retried once on the CPU target; the downgrade sticks for the rest of
// the run so every subsequent image skips the doomed attempt.
type ServiceDetector struct {
	baseURL    string
	confidence float64
	client     *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	device string
}

// NewServiceDetector constructs a detector client. device selects the
// compute target requested from the service ("auto", "cuda", "cpu").
func NewServiceDetector(baseURL string, confidence float64, device string) *ServiceDetector {
	if device == "" {
		device = "auto"
	}
	return &ServiceDetector{
		baseURL:    baseURL,
		confidence: confidence,
		device:     device,
		client:     &http.Client{Timeout: 120 * time.Second},
		logger:     logging.ForService("detection"),
	}
}

type detectRequest struct {
	ImagePath  string  `json:"image_path"`
	Confidence float64 `json:"confidence"`
	Device     string  `json:"device"`
}

type detectResponse struct {
	Boxes []struct {
		Box   [4]float64 `json:"box"`
		Score float64    `json:"score"`
	} `json:"boxes"`
	Error       string `json:"error,omitempty"`
	DeviceError bool   `json:"device_error,omitempty"`
}

// Detect returns the subject boxes found in the image, ordered as the
// service ranks them.
func (d *ServiceDetector) Detect(ctx context.Context, imagePath string) ([]Box, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		boxes, deviceFailed, err := d.detectOnce(ctx, imagePath)
		if err == nil {
			return boxes, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if deviceFailed && d.downgradeDevice() {
			// Accelerated target failed, next attempt runs on CPU.
			continue
		}
	}
	return nil, errors.New(fmt.Errorf("detection failed after %d attempts: %w", maxAttempts, lastErr)).
		Component("detection").
		Category(errors.CategoryDetection).
		Context("image", imagePath).
		Build()
}

func (d *ServiceDetector) detectOnce(ctx context.Context, imagePath string) (boxes []Box, deviceFailed bool, err error) {
	d.mu.Lock()
	device := d.device
	d.mu.Unlock()

	body, err := json.Marshal(detectRequest{
		ImagePath:  imagePath,
		Confidence: d.confidence,
		Device:     device,
	})
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/detect", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}

	var decoded detectResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, false, fmt.Errorf("decoding detection response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		return nil, decoded.DeviceError, fmt.Errorf("detection service returned %d: %s", resp.StatusCode, decoded.Error)
	}

	boxes = make([]Box, 0, len(decoded.Boxes))
	for _, b := range decoded.Boxes {
		boxes = append(boxes, Box{
			X1: b.Box[0], Y1: b.Box[1], X2: b.Box[2], Y2: b.Box[3],
			Confidence: b.Score,
		})
	}
	return boxes, false, nil
}

// downgradeDevice switches to the CPU target. Returns false when already
// on CPU, meaning there is nothing left to fall back to.
func (d *ServiceDetector) downgradeDevice() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == "cpu" {
		return false
	}
	d.logger.Warn("accelerated detection failed, falling back to cpu", "previous_device", d.device)
	d.device = "cpu"
	return true
}
