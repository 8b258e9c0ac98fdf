// Package scanner walks photo source trees and derives capture metadata
// from their directory layout.
package scanner

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ParsedMetadata is the capture metadata derived from a file's position in
// the source tree.
type ParsedMetadata struct {
	// CapturedDate is an 8-digit YYYYMMDD string. When no date can be found
	// anywhere on the path it falls back to the current date, which is a
	// known approximation rather than a metadata-accurate value.
	CapturedDate string
	// LocationTag is the human-readable location built from folder names.
	LocationTag string
	// SourceStructure is the file's parent directory relative to the source
	// root, always slash-separated, independent of date/location parsing.
	SourceStructure string
}

// DefaultLocation is used when no folder level contributes a location.
const DefaultLocation = "Unknown"

var (
	reRangeFull  = regexp.MustCompile(`^(\d{8})-(\d{8})[_\s-]*(.+)$`)
	reRangeShort = regexp.MustCompile(`^(\d{8})-(\d{2})[_\s-]*(.+)$`)
	reSingle     = regexp.MustCompile(`^(\d{8})[_\s-]*(.+)$`)
	reDateOnly   = regexp.MustCompile(`^\d{8}$`)
)

// ParseFolderName applies the folder-name grammar in priority order and
// returns the start date, end date and location contribution. end is empty
// unless a range pattern matched; start is empty when the folder carries no
// date, in which case location holds the whole folder name.
func ParseFolderName(folder string) (start, end, location string) {
	if m := reRangeFull.FindStringSubmatch(folder); m != nil {
		return m[1], m[2], m[3]
	}
	if m := reRangeShort.FindStringSubmatch(folder); m != nil {
		// End date reuses the start date's year and month.
		return m[1], m[1][:6] + m[2], m[3]
	}
	if m := reSingle.FindStringSubmatch(folder); m != nil {
		return m[1], "", m[2]
	}
	if reDateOnly.MatchString(folder) {
		return folder, "", ""
	}
	return "", "", folder
}

// PathParser derives ParsedMetadata from file paths below a source root.
type PathParser struct {
	root    string
	pattern *regexp.Regexp
}

// NewPathParser creates a parser for one source root. pattern is an optional
// regular expression with named capture groups `date` and/or `location`
// matched against the path relative to the root; pass empty to rely on the
// positional folder-name heuristic only. When the pattern matches, its
// captures win outright: positional parent-folder location accumulation is
// skipped for that file.
func NewPathParser(root, pattern string) (*PathParser, error) {
	p := &PathParser{root: root}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		p.pattern = re
	}
	return p, nil
}

// Parse derives capture metadata for one file.
func (p *PathParser) Parse(filePath string) ParsedMetadata {
	rel, err := filepath.Rel(p.root, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filePath
	}
	rel = filepath.ToSlash(rel)

	result := ParsedMetadata{
		CapturedDate:    time.Now().Format("20060102"),
		LocationTag:     DefaultLocation,
		SourceStructure: ".",
	}
	if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "" {
		result.SourceStructure = dir
	}

	fileName := filepath.Base(rel)

	if p.pattern != nil {
		if date, location, ok := p.parseExplicit(rel, fileName); ok {
			if date != "" {
				result.CapturedDate = date
			}
			if location != "" {
				result.LocationTag = location
			}
			return result
		}
	}

	date, location := parsePositional(rel)
	if date != "" {
		result.CapturedDate = date
	}
	if location != "" {
		result.LocationTag = location
	}
	return result
}

// parseExplicit matches the configured pattern against the relative path.
// A greedy location capture often swallows the file name itself; that suffix
// is stripped before use, along with trailing separators.
func (p *PathParser) parseExplicit(rel, fileName string) (date, location string, ok bool) {
	m := p.pattern.FindStringSubmatch(rel)
	if m == nil {
		return "", "", false
	}
	for i, name := range p.pattern.SubexpNames() {
		if i == 0 || i >= len(m) {
			continue
		}
		switch name {
		case "date":
			date = m[i]
		case "location":
			location = m[i]
		}
	}
	if location != "" {
		if strings.HasSuffix(location, fileName) {
			location = location[:len(location)-len(fileName)]
		}
		location = strings.TrimRight(location, "/\\_ ")
	}
	if date == "" && location == "" {
		return "", "", false
	}
	return date, location, true
}

// parsePositional walks every directory level from the root to the file,
// accumulating location contributions and keeping the last date found.
func parsePositional(rel string) (date, location string) {
	parts := strings.Split(rel, "/")
	if len(parts) <= 1 {
		return "", ""
	}

	var locations []string
	for _, folder := range parts[:len(parts)-1] {
		if folder == "" || folder == "." {
			continue
		}
		start, _, loc := ParseFolderName(folder)
		if start != "" {
			date = start
		}
		if loc != "" {
			locations = append(locations, loc)
		}
	}

	var clean []string
	for _, loc := range locations {
		loc = strings.Trim(loc, "_ ")
		if loc != "" {
			clean = append(clean, loc)
		}
	}
	return date, strings.Join(clean, "_")
}
