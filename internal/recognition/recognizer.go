// Package recognition classifies cropped subject images against a
// candidate taxon list and coordinates batched inference.
package recognition

import "context"

// Prediction is one ranked classification candidate.
type Prediction struct {
	Label      string  `json:"label"`      // scientific name
	Confidence float64 `json:"confidence"` // 0..1
}

// Recognizer ranks candidate taxa for a cropped subject image. Results are
// ordered by descending confidence.
type Recognizer interface {
	Predict(ctx context.Context, imagePath string, candidateLabels []string, topK int) ([]Prediction, error)
}

// BatchRecognizer is the optional capability of classifying several images
// against the same candidate list in one call, amortizing label-embedding
// preparation. Implementations return one result slice per input path, in
// input order.
type BatchRecognizer interface {
	Recognizer
	PredictBatch(ctx context.Context, imagePaths []string, candidateLabels []string, topK int) ([][]Prediction, error)
}
