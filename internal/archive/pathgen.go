package archive

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Metadata supplies the variables available to archival path templates.
type Metadata struct {
	CapturedDate    string // YYYYMMDD
	LocationTag     string
	SpeciesCN       string
	SpeciesSci      string
	Confidence      float64 // 0..1
	SourceStructure string  // relative source layout, kept raw
}

// PathGenerator renders archival paths from a template. Recognized
// variables: {date} {year} {month} {day} {location} {species_cn}
// {species_sci} {confidence} {source_structure} {filename} {ext}.
type PathGenerator struct {
	template   string
	outputRoot string
}

// NewPathGenerator creates a generator rooted at outputRoot.
func NewPathGenerator(template, outputRoot string) *PathGenerator {
	return &PathGenerator{template: template, outputRoot: outputRoot}
}

var illegalPathChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// sanitize strips characters illegal in file paths from a template variable.
func sanitize(value string) string {
	return strings.TrimSpace(illegalPathChars.ReplaceAllString(value, "_"))
}

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// Generate renders the archival path for one photo. Generation always
// succeeds: when the template leaves unresolved placeholders the generator
// falls back to a deterministic date_taxon_originalName scheme. Archived
// crops are always JPEGs, so the extension is forced to .jpg. Collision
// resolution is the caller's job, not the generator's.
func (g *PathGenerator) Generate(meta Metadata, originalFileName string) string {
	dt, err := time.Parse("20060102", meta.CapturedDate)
	if err != nil {
		if dt, err = time.Parse("2006-01-02", meta.CapturedDate); err != nil {
			dt = time.Now()
		}
	}

	stem := strings.TrimSuffix(originalFileName, filepath.Ext(originalFileName))
	ext := strings.TrimPrefix(filepath.Ext(originalFileName), ".")

	vars := map[string]string{
		"{date}":       sanitize(meta.CapturedDate),
		"{year}":       fmt.Sprintf("%04d", dt.Year()),
		"{month}":      fmt.Sprintf("%02d", int(dt.Month())),
		"{day}":        fmt.Sprintf("%02d", dt.Day()),
		"{location}":   sanitize(meta.LocationTag),
		"{species_cn}": sanitize(meta.SpeciesCN),
		"{species_sci}": sanitize(meta.SpeciesSci),
		"{confidence}": fmt.Sprintf("%dpct", int(meta.Confidence*100)),
		// source_structure must keep its separators so templates can mirror
		// the input layout.
		"{source_structure}": path.Clean(meta.SourceStructure),
		"{filename}":         sanitize(stem),
		"{ext}":              sanitize(ext),
	}

	rendered := g.template
	for placeholder, value := range vars {
		rendered = strings.ReplaceAll(rendered, placeholder, value)
	}

	if rendered == "" || placeholderPattern.MatchString(rendered) {
		rendered = fmt.Sprintf("%s_%s_%s", vars["{date}"], vars["{species_cn}"], vars["{filename}"])
	}

	rendered = strings.TrimSuffix(rendered, "."+vars["{ext}"])
	return filepath.Join(g.outputRoot, filepath.FromSlash(rendered)+".jpg")
}

// existsFunc abstracts the collision probe so tests can script it.
type existsFunc func(path string) bool

// ResolveCollision appends an incrementing numeric suffix until the path is
// free. The counter is strictly monotonic, so the loop terminates for any
// realistic run size.
func ResolveCollision(exists existsFunc, candidate string) string {
	if !exists(candidate) {
		return candidate
	}
	ext := filepath.Ext(candidate)
	stem := strings.TrimSuffix(candidate, ext)
	for n := 1; ; n++ {
		next := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !exists(next) {
			return next
		}
	}
}
