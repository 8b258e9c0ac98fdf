// Package taxonomy manages the imported species list and candidate label
// selection for recognition.
package taxonomy

import (
	"strings"

	"github.com/jiangyuyi/feather-trace/internal/logging"
)

// Candidate selection modes.
const (
	ModeChina  = "china"  // restrict to the domestic allowlist
	ModeAuto   = "auto"   // allowlist unless the location names a foreign country
	ModeGlobal = "global" // full taxonomy
)

// SelectCandidates chooses the taxon labels eligible for a location tag.
// The function is pure; callers compare results by value so the batch
// coordinator can detect candidate-context changes between files.
//
// ModeChina restricts to the allowlist, falling back to the full list with
// a warning when the allowlist is empty. ModeAuto returns the full list
// when locationTag contains any entry of foreignCountries as a substring,
// otherwise the allowlist. Any other mode returns allLabels unchanged.
func SelectCandidates(allLabels []string, locationTag, mode string, chinaAllowlist, foreignCountries []string) []string {
	switch mode {
	case ModeChina:
		return restrictToAllowlist(allLabels, chinaAllowlist)
	case ModeAuto:
		for _, country := range foreignCountries {
			if country != "" && strings.Contains(locationTag, country) {
				return allLabels
			}
		}
		return restrictToAllowlist(allLabels, chinaAllowlist)
	default:
		return allLabels
	}
}

func restrictToAllowlist(allLabels, allowlist []string) []string {
	if len(allowlist) == 0 {
		logging.ForService("taxonomy").Warn("region allowlist is empty, using full label list")
		return allLabels
	}

	allowed := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = struct{}{}
	}

	filtered := make([]string, 0, len(allowlist))
	for _, label := range allLabels {
		if _, ok := allowed[label]; ok {
			filtered = append(filtered, label)
		}
	}
	if len(filtered) == 0 {
		logging.ForService("taxonomy").Warn("region filter matched no labels, reverting to full list")
		return allLabels
	}
	return filtered
}

// CandidateKey returns a stable key identifying a candidate set by value.
// Identical candidate sets must map to the same key so label-embedding work
// can be reused across batches.
func CandidateKey(labels []string) string {
	return strings.Join(labels, "\x1f")
}
