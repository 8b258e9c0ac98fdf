package scanner

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jiangyuyi/feather-trace/internal/logging"
	"github.com/jiangyuyi/feather-trace/internal/storage"
)

// Scanner walks a source tree depth-first, pruning subtrees whose folder
// names carry a date range that cannot intersect the requested range.
type Scanner struct {
	provider storage.Provider
	logger   *slog.Logger
}

// NewScanner creates a Scanner over the given storage provider.
func NewScanner(provider storage.Provider) *Scanner {
	return &Scanner{
		provider: provider,
		logger:   logging.ForService("scanner"),
	}
}

// Scan yields file entries under root lazily on the returned channel. The
// channel is closed when the walk finishes or ctx is cancelled. startDate
// and endDate are optional 8-digit YYYYMMDD bounds; when both are empty no
// pruning occurs.
//
// Pruning must never produce false negatives: only a directory with a
// resolved date range that provably misses the requested range is skipped.
// A folder with no discoverable date is always descended into.
func (s *Scanner) Scan(ctx context.Context, root, startDate, endDate string) <-chan storage.Entry {
	out := make(chan storage.Entry)
	go func() {
		defer close(out)
		s.walk(ctx, root, startDate, endDate, out)
	}()
	return out
}

func (s *Scanner) walk(ctx context.Context, dir, startDate, endDate string, out chan<- storage.Entry) {
	entries, err := s.provider.List(dir, false)
	if err != nil {
		s.logger.Warn("cannot list directory", "path", dir, "error", err)
		return
	}

	// Deterministic order keeps runs reproducible across filesystems.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !entry.IsDir {
			select {
			case out <- entry:
			case <-ctx.Done():
				return
			}
			continue
		}

		if pruneDirectory(entry.Name, startDate, endDate) {
			s.logger.Debug("pruning directory outside requested range",
				"path", entry.Path, "range_start", startDate, "range_end", endDate)
			continue
		}
		s.walk(ctx, entry.Path, startDate, endDate, out)
	}
}

// pruneDirectory reports whether a directory can be skipped entirely. The
// folder name is parsed with the same grammar the path parser uses; 8-digit
// date strings compare correctly as plain strings.
func pruneDirectory(name, startDate, endDate string) bool {
	if startDate == "" && endDate == "" {
		return false
	}

	folderStart, folderEnd, _ := ParseFolderName(name)
	if folderStart == "" {
		// Ambiguous folder, always explored.
		return false
	}
	if folderEnd == "" {
		folderEnd = folderStart
	}

	if endDate != "" && folderStart > endDate {
		return true
	}
	if startDate != "" && folderEnd < startDate {
		return true
	}
	return false
}
