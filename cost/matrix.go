// Package cost builds the per-cell cost matrix from interval snapshots and
// reduces it to per-rank costs.
package cost

import (
	"fmt"
	"sort"

	"github.com/notargets/kppmap/errdefs"
)

// Matrix holds one cost column per interval, each with one value per cell.
// Columns are appended and reordered, never changed.
type Matrix struct {
	Cells     int
	Intervals []string
	Columns   [][]int64
}

// NewMatrix creates an empty matrix for cells cells
func NewMatrix(cells int) *Matrix {
	return &Matrix{Cells: cells}
}

// AppendColumn adds the costs of one interval
func (m *Matrix) AppendColumn(interval string, values []int64) error {
	if len(values) != m.Cells {
		return fmt.Errorf("interval %s has %d cells, matrix has %d: %w",
			interval, len(values), m.Cells, errdefs.ErrAssertionFailed)
	}
	if m.Has(interval) {
		return fmt.Errorf("interval %s already in cost matrix: %w", interval, errdefs.ErrAssertionFailed)
	}
	for cell, v := range values {
		if v < 0 {
			return fmt.Errorf("interval %s cell %d has negative cost %d: %w",
				interval, cell, v, errdefs.ErrAssertionFailed)
		}
	}
	m.Intervals = append(m.Intervals, interval)
	m.Columns = append(m.Columns, values)
	return nil
}

// Has reports whether interval already has a column
func (m *Matrix) Has(interval string) bool {
	return m.index(interval) >= 0
}

// Column returns the costs of interval
func (m *Matrix) Column(interval string) ([]int64, error) {
	j := m.index(interval)
	if j < 0 {
		return nil, fmt.Errorf("interval %s: %w", interval, errdefs.ErrKeyNotFound)
	}
	return m.Columns[j], nil
}

func (m *Matrix) index(interval string) int {
	for j, name := range m.Intervals {
		if name == interval {
			return j
		}
	}
	return -1
}

// Total sums every cost in the matrix
func (m *Matrix) Total() int64 {
	var total int64
	for _, col := range m.Columns {
		for _, v := range col {
			total += v
		}
	}
	return total
}

// SortIntervals orders the columns by interval identifier
func (m *Matrix) SortIntervals() {
	sort.Sort(byInterval{m})
}

type byInterval struct{ m *Matrix }

func (b byInterval) Len() int           { return len(b.m.Intervals) }
func (b byInterval) Less(i, j int) bool { return b.m.Intervals[i] < b.m.Intervals[j] }
func (b byInterval) Swap(i, j int) {
	b.m.Intervals[i], b.m.Intervals[j] = b.m.Intervals[j], b.m.Intervals[i]
	b.m.Columns[i], b.m.Columns[j] = b.m.Columns[j], b.m.Columns[i]
}
