package conf

import (
	"fmt"

	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// ValidateSettings checks settings the pipeline cannot run without. These
// are configuration-fatal: a run is aborted before scanning begins.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if len(settings.Sources) == 0 {
		errs = append(errs, fmt.Errorf("no source directories configured"))
	}
	for i, src := range settings.Sources {
		if src.Path == "" {
			errs = append(errs, fmt.Errorf("source %d has an empty path", i))
		}
	}

	if settings.Output.Root == "" {
		errs = append(errs, fmt.Errorf("output.root must be set"))
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		errs = append(errs, fmt.Errorf("output.sqlite.path must be set when sqlite is enabled"))
	}

	if settings.Processing.Workers < 1 {
		errs = append(errs, fmt.Errorf("processing.workers must be at least 1, got %d", settings.Processing.Workers))
	}
	if settings.Processing.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("processing.batchsize must be at least 1, got %d", settings.Processing.BatchSize))
	}
	if settings.Processing.BlurThreshold < 0 {
		errs = append(errs, fmt.Errorf("processing.blurthreshold must not be negative, got %v", settings.Processing.BlurThreshold))
	}

	switch settings.Recognition.Mode {
	case "china", "auto", "global", "":
	default:
		errs = append(errs, fmt.Errorf("recognition.mode must be china, auto or global, got %q", settings.Recognition.Mode))
	}
	if settings.Recognition.LowConfidenceThreshold < 0 || settings.Recognition.LowConfidenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("recognition.lowconfidencethreshold must be a percentage"))
	}
	if settings.Recognition.AlternativesThreshold < 0 || settings.Recognition.AlternativesThreshold > 100 {
		errs = append(errs, fmt.Errorf("recognition.alternativesthreshold must be a percentage"))
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.New(errors.Join(errs...)).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}
