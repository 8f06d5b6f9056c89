package mapping

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/table"
)

const fragmentationColumn = "fragmentation"

// MapPath returns where WriteMap stores m in dir
func MapPath(dir string, m *Map) string {
	return filepath.Join(dir, m.Name+".csv")
}

// WriteMap stores m under dir as <name>.csv, one row per rank and one
// column per index on rank, plus <name>.fragmentation.csv. Ranks with
// fewer cells leave their trailing fields empty.
func WriteMap(dir string, delim rune, m *Map) error {
	width := 0
	for _, targets := range m.Targets {
		width = max(width, len(targets))
	}
	err := table.WriteFunc(MapPath(dir, m), delim, func(w *csv.Writer) error {
		row := make([]string, width)
		for _, targets := range m.Targets {
			for i := range row {
				row[i] = ""
				if i < len(targets) {
					row[i] = strconv.Itoa(targets[i])
				}
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	frag := &table.Table{Header: []string{"rank", fragmentationColumn}}
	for r, f := range m.Fragmentation {
		frag.Rows = append(frag.Rows, []string{strconv.Itoa(r), strconv.Itoa(f)})
	}
	return table.Write(filepath.Join(dir, m.Name+".fragmentation.csv"), delim, frag)
}

// RankPath returns where WriteSeries stores rank's plan in dir
func RankPath(dir string, rank int) string {
	return filepath.Join(dir, fmt.Sprintf("rank_%d.csv", rank))
}

// WriteSeries stores s under dir as one rank_<r>.csv per rank, one row per
// interval and one column per index on rank, plus fragmentation.csv
func WriteSeries(dir string, delim rune, s *Series) error {
	for r, byInterval := range s.Targets {
		count := 0
		if len(byInterval) > 0 {
			count = len(byInterval[0])
		}
		header := make([]string, count+1)
		header[0] = "interval"
		for i := 1; i <= count; i++ {
			header[i] = strconv.Itoa(i)
		}

		out := &table.Table{Header: header, Rows: make([][]string, len(s.Intervals))}
		for k, id := range s.Intervals {
			out.Rows[k] = append([]string{strconv.Itoa(id)}, table.FormatInts(byInterval[k])...)
		}
		if err := table.Write(RankPath(dir, r), delim, out); err != nil {
			return err
		}
	}

	frag := &table.Table{Header: []string{"interval", "rank", fragmentationColumn}}
	for k, id := range s.Intervals {
		for r, f := range s.Fragmentation[k] {
			frag.Rows = append(frag.Rows, []string{strconv.Itoa(id), strconv.Itoa(r), strconv.Itoa(f)})
		}
	}
	return table.Write(filepath.Join(dir, "fragmentation.csv"), delim, frag)
}

// ReadFragmentation loads the fragmentation column of an artifact written
// by WriteMap or WriteSeries
func ReadFragmentation(path string, delim rune) ([]int, error) {
	tab, err := table.Read(path, delim, true)
	if err != nil {
		return nil, err
	}
	col := tab.Column(fragmentationColumn)
	if col < 0 {
		return nil, fmt.Errorf("%s has no %s column: %w", path, fragmentationColumn, errdefs.ErrKeyNotFound)
	}
	out := make([]int, len(tab.Rows))
	for i, row := range tab.Rows {
		if col >= len(row) {
			return nil, fmt.Errorf("%s row %d is short: %w", path, i+1, errdefs.ErrAssertionFailed)
		}
		if out[i], err = table.ParseInt(row[col]); err != nil {
			return nil, fmt.Errorf("%s row %d: %v: %w", path, i+1, err, errdefs.ErrAssertionFailed)
		}
	}
	return out, nil
}

// Bin counts the ranks that scatter their cells to Targets distinct ranks
type Bin struct {
	Targets int
	Ranks   int
}

// Histogram bins fragmentation values. Bins run from 1 to the largest value
// so empty bins are reported; ranks without cells (value 0) get a bin only
// if present.
func Histogram(fragmentation []int) []Bin {
	counts := make(map[int]int)
	top := 0
	for _, f := range fragmentation {
		counts[f]++
		top = max(top, f)
	}
	bins := make([]Bin, 0, top+1)
	if counts[0] > 0 {
		bins = append(bins, Bin{Targets: 0, Ranks: counts[0]})
	}
	for k := 1; k <= top; k++ {
		bins = append(bins, Bin{Targets: k, Ranks: counts[k]})
	}
	return bins
}

// WriteHistogram stores bins as [targets, ranks]
func WriteHistogram(path string, delim rune, bins []Bin) error {
	out := &table.Table{Header: []string{"targets", "ranks"}}
	for _, b := range bins {
		out.Rows = append(out.Rows, []string{strconv.Itoa(b.Targets), strconv.Itoa(b.Ranks)})
	}
	return table.Write(path, delim, out)
}
