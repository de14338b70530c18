package cleanup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("botctl.cleanup")

// ErrDirectoryNotFound is returned when the target directory does not exist.
var ErrDirectoryNotFound = errors.New("directory not found")

// Snapshot is one matching file in the storage directory. Nothing is kept
// in memory across runs; the set is recomputed from the listing each time.
type Snapshot struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Result reports a best-effort deletion batch. Per-file failures are
// collected in Errors and never abort the remaining files.
type Result struct {
	Deleted int
	Errors  []error
}

// Plan lists files in dir whose name matches the shell glob pattern and
// returns the ones to delete: everything past the keep most recently
// modified. Ties in mtime are broken by ascending path so repeated runs are
// stable. A directory with count <= keep matches yields an empty plan.
func Plan(dir, pattern string, keep int) ([]Snapshot, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must be >= 0, got %d", keep)
	}

	matches, err := matchDir(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) <= keep {
		return nil, nil
	}

	// newest first
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].ModTime.Equal(matches[j].ModTime) {
			return matches[i].ModTime.After(matches[j].ModTime)
		}
		return matches[i].Path < matches[j].Path
	})

	return matches[keep:], nil
}

// Prune deletes all files in dir matching pattern except the keep newest.
func Prune(dir, pattern string, keep int) (Result, error) {
	victims, err := Plan(dir, pattern, keep)
	if err != nil {
		return Result{}, err
	}

	res := Remove(victims)
	logger.Infof("prune: dir=%s pattern=%q keep=%d deleted=%d failed=%d",
		dir, pattern, keep, res.Deleted, len(res.Errors))
	return res, nil
}

// Remove deletes each snapshot, collecting individual failures. A file that
// vanished between listing and delete counts as a failure, not a deletion.
func Remove(victims []Snapshot) Result {
	var res Result
	for _, s := range victims {
		if err := os.Remove(s.Path); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("delete %s: %w", s.Path, err))
			logger.Errorf("delete %s: %v", s.Path, err)
			continue
		}
		res.Deleted++
	}
	return res
}

func matchDir(dir, pattern string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// entry vanished between listing and stat
			continue
		}

		out = append(out, Snapshot{
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return out, nil
}
