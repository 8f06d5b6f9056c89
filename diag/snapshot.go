package diag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/notargets/kppmap/errdefs"
)

// Naming is the file naming convention of per-interval snapshots:
// <Prefix><interval><Suffix>, where interval is a lexicographically
// sortable timestamp such as 20190701_0000z.
type Naming struct {
	Prefix string
	Suffix string
}

// Snapshot is one interval's diagnostics file
type Snapshot struct {
	Interval string
	Path     string
}

// Interval extracts the interval tag from a file name
func (n Naming) Interval(name string) (string, bool) {
	base := filepath.Base(name)
	if len(base) <= len(n.Prefix)+len(n.Suffix) ||
		!strings.HasPrefix(base, n.Prefix) || !strings.HasSuffix(base, n.Suffix) {
		return "", false
	}
	return base[len(n.Prefix) : len(base)-len(n.Suffix)], true
}

// Discover resolves path to the snapshots it names. A directory yields every
// matching file sorted by interval; a file must itself match. The returned
// directory is where artifacts for these snapshots are written.
func Discover(path string, n Naming) ([]Snapshot, string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("invalid path %s: %w", path, errdefs.ErrFileNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		tag, ok := n.Interval(path)
		if !ok {
			return nil, "", fmt.Errorf("%s is not a %s*%s snapshot: %w",
				path, n.Prefix, n.Suffix, errdefs.ErrFileNotFound)
		}
		return []Snapshot{{Interval: tag, Path: path}}, filepath.Dir(path), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, "", fmt.Errorf("list %s: %w", path, err)
	}

	var snaps []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if tag, ok := n.Interval(e.Name()); ok {
			snaps = append(snaps, Snapshot{Interval: tag, Path: filepath.Join(path, e.Name())})
		}
	}
	if len(snaps) == 0 {
		return nil, "", fmt.Errorf("no %s*%s snapshots found in %s: %w",
			n.Prefix, n.Suffix, path, errdefs.ErrFileNotFound)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Interval < snaps[j].Interval
	})
	return snaps, path, nil
}
