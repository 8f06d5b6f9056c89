package cost

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/table"
)

const (
	cellColumn = "cell"
	rankColumn = "rank"
)

// WriteMatrix stores m as one row per cell and one column per interval
func WriteMatrix(path string, delim rune, m *Matrix) error {
	return table.WriteFunc(path, delim, func(w *csv.Writer) error {
		if err := w.Write(append([]string{cellColumn}, m.Intervals...)); err != nil {
			return err
		}
		row := make([]string, len(m.Columns)+1)
		for cell := 0; cell < m.Cells; cell++ {
			row[0] = strconv.Itoa(cell)
			for j, col := range m.Columns {
				row[j+1] = strconv.FormatInt(col[cell], 10)
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteColumn stores a single interval, as used by separated output
func WriteColumn(path string, delim rune, c Column) error {
	m := NewMatrix(len(c.Values))
	if err := m.AppendColumn(c.Interval, c.Values); err != nil {
		return err
	}
	return WriteMatrix(path, delim, m)
}

// ReadMatrix loads a cost table written by WriteMatrix or WriteColumn
func ReadMatrix(path string, delim rune) (*Matrix, error) {
	tab, err := table.Read(path, delim, true)
	if err != nil {
		return nil, err
	}
	if len(tab.Header) == 0 || tab.Header[0] != cellColumn {
		return nil, fmt.Errorf("%s: first column is not %q: %w", path, cellColumn, errdefs.ErrAssertionFailed)
	}

	n := len(tab.Rows)
	intervals := tab.Header[1:]
	cols := make([][]int64, len(intervals))
	for j := range cols {
		cols[j] = make([]int64, n)
	}
	seen := make([]bool, n)
	for i, row := range tab.Rows {
		if len(row) != len(tab.Header) {
			return nil, fmt.Errorf("%s row %d has %d fields, header has %d: %w",
				path, i+1, len(row), len(tab.Header), errdefs.ErrAssertionFailed)
		}
		cell, err := table.ParseInt(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %v: %w", path, i+1, err, errdefs.ErrAssertionFailed)
		}
		if cell < 0 || cell >= n {
			return nil, fmt.Errorf("%s row %d: cell %d outside [0, %d): %w", path, i+1, cell, n, errdefs.ErrKeyNotFound)
		}
		if seen[cell] {
			return nil, fmt.Errorf("%s row %d: cell %d listed twice: %w", path, i+1, cell, errdefs.ErrAssertionFailed)
		}
		seen[cell] = true
		for j, f := range row[1:] {
			v, err := table.ParseInt(f)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %v: %w",
					path, i+1, intervals[j], err, errdefs.ErrAssertionFailed)
			}
			cols[j][cell] = int64(v)
		}
	}

	m := NewMatrix(n)
	for j, name := range intervals {
		if err := m.AppendColumn(name, cols[j]); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return m, nil
}

// Merge appends every column of other to m
func (m *Matrix) Merge(other *Matrix) error {
	for j, name := range other.Intervals {
		if err := m.AppendColumn(name, other.Columns[j]); err != nil {
			return err
		}
	}
	return nil
}

// WriteRankCosts stores rc as one row per rank and one column per interval
func WriteRankCosts(path string, delim rune, rc *RankCosts) error {
	return table.WriteFunc(path, delim, func(w *csv.Writer) error {
		if err := w.Write(append([]string{rankColumn}, rc.Intervals...)); err != nil {
			return err
		}
		for rank, values := range rc.Values {
			row := make([]string, 0, len(values)+1)
			row = append(row, strconv.Itoa(rank))
			for _, v := range values {
				row = append(row, strconv.FormatInt(v, 10))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}
