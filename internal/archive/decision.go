// Package archive turns classification results into final archived photos:
// archival decision, path generation, tag writing and record persistence.
package archive

import (
	"github.com/jiangyuyi/feather-trace/internal/recognition"
)

// Sentinel taxon identifiers.
const (
	// UnknownTaxon marks photos the classifier returned no results for.
	UnknownTaxon = "Unknown"
	// UnresolvedTaxon marks photos whose top confidence fell below the
	// low-confidence floor. Archiving under this sentinel instead of the
	// top guess keeps low-trust photos from being silently mislabeled.
	UnresolvedTaxon = "Unresolved"
)

// Identification is the archival decision derived from ranked predictions.
type Identification struct {
	ScientificName string
	Confidence     float64
	// Alternatives holds runner-up candidates surfaced in exported
	// annotations when the top confidence is not decisive. The full ranked
	// list is persisted in the photo record regardless.
	Alternatives []recognition.Prediction
	Unresolved   bool
}

// Decide applies the archival decision rules. Thresholds are percentages.
func Decide(predictions []recognition.Prediction, alternativesThreshold, lowConfidenceThreshold float64) Identification {
	if len(predictions) == 0 {
		return Identification{ScientificName: UnknownTaxon, Confidence: 0}
	}

	top := predictions[0]
	confidencePct := top.Confidence * 100

	if confidencePct < lowConfidenceThreshold {
		return Identification{
			ScientificName: UnresolvedTaxon,
			Confidence:     top.Confidence,
			Unresolved:     true,
		}
	}

	ident := Identification{
		ScientificName: top.Label,
		Confidence:     top.Confidence,
	}
	if confidencePct <= alternativesThreshold && len(predictions) > 1 {
		ident.Alternatives = predictions[1:]
	}
	return ident
}
