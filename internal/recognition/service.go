package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// ServiceRecognizer calls the recognition REST service. It implements both
// Recognizer and BatchRecognizer; the service prepares label embeddings per
// request and caches them keyed on the candidate list, so keeping batches
// candidate-homogeneous is what makes batching pay off.
type ServiceRecognizer struct {
	baseURL string
	client  *http.Client
}

// NewServiceRecognizer constructs a recognizer client.
func NewServiceRecognizer(baseURL string) *ServiceRecognizer {
	return &ServiceRecognizer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

type recognizeRequest struct {
	ImagePaths      []string `json:"image_paths"`
	CandidateLabels []string `json:"candidate_labels"`
	TopK            int      `json:"top_k"`
}

type recognizeResponse struct {
	Results [][]Prediction `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// Predict classifies one image.
func (r *ServiceRecognizer) Predict(ctx context.Context, imagePath string, candidateLabels []string, topK int) ([]Prediction, error) {
	results, err := r.PredictBatch(ctx, []string{imagePath}, candidateLabels, topK)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, errors.Newf("recognition service returned %d results for one image", len(results)).
			Component("recognition").
			Category(errors.CategoryRecognition).
			Build()
	}
	return results[0], nil
}

// PredictBatch classifies several images against one candidate list in a
// single call.
func (r *ServiceRecognizer) PredictBatch(ctx context.Context, imagePaths, candidateLabels []string, topK int) ([][]Prediction, error) {
	body, err := json.Marshal(recognizeRequest{
		ImagePaths:      imagePaths,
		CandidateLabels: candidateLabels,
		TopK:            topK,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.New(fmt.Errorf("calling recognition service: %w", err)).
			Component("recognition").
			Category(errors.CategoryNetwork).
			Build()
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded recognizeResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decoding recognition response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		return nil, errors.Newf("recognition service returned %d: %s", resp.StatusCode, decoded.Error).
			Component("recognition").
			Category(errors.CategoryRecognition).
			Build()
	}
	if len(decoded.Results) != len(imagePaths) {
		return nil, errors.Newf("recognition service returned %d results for %d images", len(decoded.Results), len(imagePaths)).
			Component("recognition").
			Category(errors.CategoryRecognition).
			Build()
	}
	return decoded.Results, nil
}
