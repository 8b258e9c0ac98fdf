package archive

import (
	"fmt"
	"sync"

	exiftool "github.com/barasher/go-exiftool"

	"github.com/jiangyuyi/feather-trace/internal/errors"
	"github.com/jiangyuyi/feather-trace/internal/logging"
)

// MetadataWriter writes descriptive tags into an archived image. Values may
// be scalar or list-valued for multi-value tags such as IPTC keywords.
type MetadataWriter interface {
	Write(path string, tags map[string]any) error
	Close() error
}

// ExifToolWriter writes tags through a long-lived exiftool process.
type ExifToolWriter struct {
	mu sync.Mutex // exiftool stayopen sessions are not goroutine safe
	et *exiftool.Exiftool
}

// NewExifToolWriter starts an exiftool session. Fails when the exiftool
// binary is not installed; callers degrade to a NoopWriter in that case.
func NewExifToolWriter() (*ExifToolWriter, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, errors.New(fmt.Errorf("starting exiftool: %w", err)).
			Component("archive").
			Category(errors.CategoryMetadataWrite).
			Build()
	}
	return &ExifToolWriter{et: et}, nil
}

// Write applies the tag map to the image at path.
func (w *ExifToolWriter) Write(path string, tags map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	for tag, value := range tags {
		switch v := value.(type) {
		case []string:
			fm.SetStrings(tag, v)
		case string:
			fm.SetString(tag, v)
		default:
			fm.SetString(tag, fmt.Sprintf("%v", v))
		}
	}

	fms := []exiftool.FileMetadata{fm}
	w.et.WriteMetadata(fms)
	if fms[0].Err != nil {
		return errors.New(fmt.Errorf("writing tags to %s: %w", path, fms[0].Err)).
			Component("archive").
			Category(errors.CategoryMetadataWrite).
			Build()
	}
	return nil
}

// Close shuts the exiftool session down.
func (w *ExifToolWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.et.Close()
}

// NoopWriter satisfies MetadataWriter when no tag writer is available.
// Tag writing is skipped; archiving and record keeping continue.
type NoopWriter struct{}

// Write does nothing.
func (NoopWriter) Write(string, map[string]any) error { return nil }

// Close does nothing.
func (NoopWriter) Close() error { return nil }

// NewMetadataWriter returns an exiftool-backed writer, or a NoopWriter with
// a warning when the exiftool binary is missing.
func NewMetadataWriter() MetadataWriter {
	w, err := NewExifToolWriter()
	if err != nil {
		logging.ForService("archive").Warn("exiftool unavailable, tag writing disabled", "error", err)
		return NoopWriter{}
	}
	return w
}
