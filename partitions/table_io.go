package partitions

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
	"github.com/notargets/kppmap/table"
)

// RankIndexHeader is the header of the rank index artifact
var RankIndexHeader = []string{"cell", "rank", "index_on_rank"}

// WriteRankIndex stores the table as one row per cell
func WriteRankIndex(path string, delim rune, t *RankIndexTable) error {
	return table.WriteFunc(path, delim, func(w *csv.Writer) error {
		if err := w.Write(RankIndexHeader); err != nil {
			return err
		}
		for cell := range t.Rank {
			row := []string{
				strconv.Itoa(cell),
				strconv.Itoa(t.Rank[cell]),
				strconv.Itoa(t.IndexOnRank[cell]),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadRankIndex loads a rank index artifact. Every cell in [0, rows) must
// appear exactly once; a gap is reported as a missing key.
func ReadRankIndex(path string, delim rune) (*RankIndexTable, error) {
	tab, err := table.Read(path, delim, true)
	if err != nil {
		return nil, err
	}
	for i, h := range RankIndexHeader {
		if tab.Column(h) != i {
			return nil, fmt.Errorf("%s: header %v, want %v: %w",
				path, tab.Header, RankIndexHeader, errdefs.ErrAssertionFailed)
		}
	}

	n := len(tab.Rows)
	rank := make([]int, n)
	index := make([]int, n)
	seen := make([]bool, n)
	for i, row := range tab.Rows {
		if len(row) != len(RankIndexHeader) {
			return nil, fmt.Errorf("%s row %d has %d fields: %w", path, i+1, len(row), errdefs.ErrAssertionFailed)
		}
		vals := make([]int, len(row))
		for j, f := range row {
			if vals[j], err = table.ParseInt(f); err != nil {
				return nil, fmt.Errorf("%s row %d: %v: %w", path, i+1, err, errdefs.ErrAssertionFailed)
			}
		}

		cell := vals[0]
		if cell < 0 || cell >= n {
			return nil, fmt.Errorf("%s row %d: cell %d outside [0, %d): %w",
				path, i+1, cell, n, errdefs.ErrKeyNotFound)
		}
		if seen[cell] {
			return nil, fmt.Errorf("%s row %d: cell %d listed twice: %w", path, i+1, cell, errdefs.ErrAssertionFailed)
		}
		seen[cell] = true
		rank[cell], index[cell] = vals[1], vals[2]
	}
	return NewRankIndexTable(rank, index)
}

// WriteRankGrid stores the rank column reshaped to the grid layout
func WriteRankGrid(path string, delim rune, d grid.Dims, t *RankIndexTable) error {
	rows, err := t.RankGrid(d)
	if err != nil {
		return err
	}
	out := &table.Table{Rows: make([][]string, len(rows))}
	for i, r := range rows {
		out.Rows[i] = table.FormatInts(r)
	}
	return table.Write(path, delim, out)
}

// ReadRankGrid loads a grid-shaped assignment and flattens it back to one
// rank per cell
func ReadRankGrid(path string, delim rune, d grid.Dims) ([]int, error) {
	tab, err := table.Read(path, delim, false)
	if err != nil {
		return nil, err
	}
	rows := make([][]int, len(tab.Rows))
	for i, rec := range tab.Rows {
		rows[i] = make([]int, len(rec))
		for j, f := range rec {
			if rows[i][j], err = table.ParseInt(f); err != nil {
				return nil, fmt.Errorf("%s row %d: %v: %w", path, i+1, err, errdefs.ErrAssertionFailed)
			}
		}
	}
	ranks, err := d.Unreshape(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, errdefs.ErrAssertionFailed)
	}
	return ranks, nil
}
