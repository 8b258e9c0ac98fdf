// Package storage abstracts the filesystem the pipeline reads photos from
// and archives them to. LocalProvider covers locally mounted storage; the
// interface leaves room for remote backends without changing callers.
package storage

// Entry represents a file or directory yielded by a listing.
type Entry struct {
	Path      string // absolute path or URI
	Name      string // base name
	IsDir     bool
	SizeBytes int64
}

// Provider is the storage backend interface. Implementations must be safe
// for concurrent use.
type Provider interface {
	// List yields the contents of a directory. With recursive set it walks
	// the whole subtree. Entries for ignored system directories are never
	// yielded.
	List(path string, recursive bool) ([]Entry, error)

	// Exists reports whether the path exists.
	Exists(path string) bool

	// ReadBytes reads the whole file.
	ReadBytes(path string) ([]byte, error)

	// WriteBytes writes data to path, creating parent directories.
	WriteBytes(path string, data []byte) error

	// Delete removes a file.
	Delete(path string) error

	// Move renames src to dst within the same provider, creating parent
	// directories for dst.
	Move(src, dst string) error

	// LocalPath returns an absolute local filesystem path for the file and
	// true when the file is directly addressable on the local filesystem.
	// Remote providers return false; callers then download to a temp file.
	LocalPath(path string) (string, bool)
}
