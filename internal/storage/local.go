package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jiangyuyi/feather-trace/internal/errors"
	"github.com/jiangyuyi/feather-trace/internal/logging"
)

// ignoredDirs lists NAS and system directories that are skipped entirely
// during listing and traversal.
var ignoredDirs = map[string]struct{}{
	"@Recycle":                  {}, // QNAP
	"#recycle":                  {}, // Synology
	"#Recycle":                  {},
	"$RECYCLE.BIN":              {}, // Windows
	"System Volume Information": {},
	".Trash":                    {},
	".trash":                    {},
	".Trashes":                  {},
	"@eaDir":                    {}, // Synology metadata
	".@__thumb":                 {},
	"#snapshot":                 {},
}

// IsIgnoredDir reports whether a directory name is on the system/recycle-bin
// ignore list.
func IsIgnoredDir(name string) bool {
	if _, ok := ignoredDirs[name]; ok {
		return true
	}
	return strings.HasPrefix(name, ".")
}

// LocalProvider implements Provider for locally mounted filesystems.
// When allowedRoots is non-empty every access is confined to those trees.
type LocalProvider struct {
	allowedRoots []string
	logger       interface {
		Warn(msg string, args ...any)
	}
}

// NewLocalProvider constructs a LocalProvider. allowedRoots may be nil to
// disable confinement.
func NewLocalProvider(allowedRoots []string) (*LocalProvider, error) {
	resolved := make([]string, 0, len(allowedRoots))
	for _, root := range allowedRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.New(fmt.Errorf("resolving allowed root %s: %w", root, err)).
				Component("storage").
				Category(errors.CategoryConfiguration).
				Build()
		}
		resolved = append(resolved, abs)
	}
	return &LocalProvider{
		allowedRoots: resolved,
		logger:       logging.ForService("storage"),
	}, nil
}

// ErrAccessDenied is returned when a path escapes the allowed roots.
var ErrAccessDenied = errors.NewStd("access denied: path outside allowed roots")

func (p *LocalProvider) validate(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if len(p.allowedRoots) == 0 {
		return abs, nil
	}
	for _, root := range p.allowedRoots {
		if abs == root || strings.HasPrefix(abs, root+string(os.PathSeparator)) {
			return abs, nil
		}
	}
	return "", errors.New(ErrAccessDenied).
		Component("storage").
		Category(errors.CategoryValidation).
		Context("path", abs).
		Build()
}

// List yields the contents of a directory, skipping hidden files and
// ignored system directories. Permission errors on individual entries are
// logged and skipped rather than failing the listing.
func (p *LocalProvider) List(path string, recursive bool) ([]Entry, error) {
	dir, err := p.validate(path)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if !recursive {
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, de := range dirEntries {
			if entry, ok := p.toEntry(filepath.Join(dir, de.Name()), de); ok {
				entries = append(entries, entry)
			}
		}
		return entries, nil
	}

	err = filepath.WalkDir(dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if de != nil && de.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}
		if de.IsDir() && IsIgnoredDir(de.Name()) {
			return fs.SkipDir
		}
		if entry, ok := p.toEntry(path, de); ok {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *LocalProvider) toEntry(path string, de fs.DirEntry) (Entry, bool) {
	name := de.Name()
	if de.IsDir() {
		if IsIgnoredDir(name) {
			return Entry{}, false
		}
		return Entry{Path: path, Name: name, IsDir: true}, true
	}
	if strings.HasPrefix(name, ".") {
		return Entry{}, false
	}
	info, err := de.Info()
	if err != nil {
		p.logger.Warn("cannot stat entry", "path", path, "error", err)
		return Entry{}, false
	}
	return Entry{Path: path, Name: name, IsDir: false, SizeBytes: info.Size()}, true
}

// Exists reports whether the path exists within the allowed roots.
func (p *LocalProvider) Exists(path string) bool {
	abs, err := p.validate(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// ReadBytes reads the whole file.
func (p *LocalProvider) ReadBytes(path string) ([]byte, error) {
	abs, err := p.validate(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// WriteBytes writes data to path, creating parent directories.
func (p *LocalProvider) WriteBytes(path string, data []byte) error {
	abs, err := p.validate(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, data, 0o644)
}

// Delete removes a file.
func (p *LocalProvider) Delete(path string) error {
	abs, err := p.validate(path)
	if err != nil {
		return err
	}
	return os.Remove(abs)
}

// Move renames src to dst, creating parent directories for dst.
func (p *LocalProvider) Move(src, dst string) error {
	absSrc, err := p.validate(src)
	if err != nil {
		return err
	}
	absDst, err := p.validate(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(absSrc, absDst); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copy and delete.
	data, err := os.ReadFile(absSrc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(absDst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(absSrc)
}

// LocalPath returns the absolute path; files on a LocalProvider are always
// locally addressable.
func (p *LocalProvider) LocalPath(path string) (string, bool) {
	abs, err := p.validate(path)
	if err != nil {
		return "", false
	}
	return abs, true
}
