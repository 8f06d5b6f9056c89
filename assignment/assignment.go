// Package assignment loads cell -> target rank assignments produced by an
// external partitioner.
//
// An assignment file holds N integers in row-major cell order. Any layout
// of rows and columns is accepted as long as reading left to right, top to
// bottom yields cell 0 through N-1, so the grid-shaped files written by the
// convert step load unchanged.
package assignment

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/table"
)

// Assignment is one target rank per cell
type Assignment struct {
	Name    string // File name without extension
	Path    string
	Targets []int
}

// Load reads the assignment at path and checks it covers exactly cells
// cells. Fields may be separated by delim or whitespace.
func Load(path string, delim rune, cells int) (*Assignment, error) {
	tab, err := table.Read(path, delim, false)
	if err != nil {
		return nil, err
	}

	targets := make([]int, 0, cells)
	for i, row := range tab.Rows {
		for _, field := range row {
			for _, tok := range strings.Fields(field) {
				v, err := table.ParseInt(tok)
				if err != nil {
					return nil, fmt.Errorf("%s line %d: %v: %w", path, i+1, err, errdefs.ErrAssertionFailed)
				}
				if v < 0 {
					return nil, fmt.Errorf("%s line %d: negative target rank %d: %w",
						path, i+1, v, errdefs.ErrAssertionFailed)
				}
				targets = append(targets, v)
			}
		}
	}
	if len(targets) != cells {
		return nil, fmt.Errorf("%s holds %d entries, grid has %d cells: %w",
			path, len(targets), cells, errdefs.ErrAssertionFailed)
	}

	base := filepath.Base(path)
	return &Assignment{
		Name:    strings.TrimSuffix(base, filepath.Ext(base)),
		Path:    path,
		Targets: targets,
	}, nil
}

var intervalPattern = regexp.MustCompile(`^interval_(\d+)\.[^.]+$`)

// IntervalID extracts N from a batch file name interval_<N>.<ext>
func IntervalID(name string) (int, bool) {
	m := intervalPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// Interval is one member of a batch
type Interval struct {
	ID int
	*Assignment
}

// LoadDir loads every interval_<N>.<ext> file in dir ordered by N. Files
// that do not match the pattern, and later files repeating an N, are skipped
// with a warning. Gaps in N are kept as gaps.
func LoadDir(dir string, delim rune, cells int, log *zap.Logger) ([]Interval, error) {
	if log == nil {
		log = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", dir, errdefs.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	paths := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := IntervalID(e.Name())
		if !ok {
			log.Warn("skipping file not named interval_<N>.<ext>", zap.String("file", e.Name()))
			continue
		}
		if prev, dup := paths[id]; dup {
			log.Warn("skipping duplicate interval",
				zap.Int("interval", id),
				zap.String("file", e.Name()),
				zap.String("kept", filepath.Base(prev)))
			continue
		}
		paths[id] = filepath.Join(dir, e.Name())
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no interval_<N> assignments in %s: %w", dir, errdefs.ErrFileNotFound)
	}

	ids := make([]int, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Interval, 0, len(ids))
	for _, id := range ids {
		a, err := Load(paths[id], delim, cells)
		if err != nil {
			return nil, err
		}
		out = append(out, Interval{ID: id, Assignment: a})
	}
	return out, nil
}
