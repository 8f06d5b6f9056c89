package cost

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/partitions"
)

// Reducer folds the costs of a rank's cells into one rank cost
type Reducer string

const (
	// Max is the bottleneck cost when ranks synchronize at every step
	Max Reducer = "max"
	// Sum is the total work on the rank
	Sum Reducer = "sum"
)

// ParseReducer validates a reducer name
func ParseReducer(name string) (Reducer, error) {
	switch r := Reducer(name); r {
	case Max, Sum:
		return r, nil
	case "":
		return Max, nil
	}
	return "", fmt.Errorf("unknown reducer %q (want %s or %s): %w", name, Max, Sum, errdefs.ErrInvalidArguments)
}

func (r Reducer) fold(acc, v int64) int64 {
	if r == Sum {
		return acc + v
	}
	if v > acc {
		return v
	}
	return acc
}

// RankCosts is the reduced cost of every rank per interval
type RankCosts struct {
	NumRanks  int
	Intervals []string
	Values    [][]int64 // [rank][interval]
	Reducer   Reducer
}

// Aggregate reduces every interval of m over the cells of each rank in t.
// Ranks without cells get zero.
func Aggregate(m *Matrix, t *partitions.RankIndexTable, r Reducer) (*RankCosts, error) {
	if m.Cells != t.NumCells() {
		return nil, fmt.Errorf("cost matrix has %d cells, rank index table has %d: %w",
			m.Cells, t.NumCells(), errdefs.ErrAssertionFailed)
	}
	if r == "" {
		r = Max
	}

	rc := &RankCosts{
		NumRanks:  t.NumRanks,
		Intervals: append([]string(nil), m.Intervals...),
		Values:    make([][]int64, t.NumRanks),
		Reducer:   r,
	}
	for rank := range rc.Values {
		rc.Values[rank] = make([]int64, len(m.Intervals))
	}
	for j, col := range m.Columns {
		for cell, v := range col {
			rank := t.Rank[cell]
			rc.Values[rank][j] = r.fold(rc.Values[rank][j], v)
		}
	}
	return rc, nil
}

// Dense returns the rank costs as ranks x intervals
func (rc *RankCosts) Dense() *mat.Dense {
	if rc.NumRanks == 0 || len(rc.Intervals) == 0 {
		return nil
	}
	d := mat.NewDense(rc.NumRanks, len(rc.Intervals), nil)
	for rank, row := range rc.Values {
		for j, v := range row {
			d.Set(rank, j, float64(v))
		}
	}
	return d
}

// Imbalance is the max over mean of the rank costs of one interval.
// A perfectly balanced interval scores 1.
type Imbalance struct {
	Interval string
	Max      float64
	Mean     float64
	Ratio    float64
}

// Imbalances summarizes every interval. An interval with zero mean cost
// reports a ratio of 1.
func (rc *RankCosts) Imbalances() []Imbalance {
	out := make([]Imbalance, len(rc.Intervals))
	d := rc.Dense()
	for j, name := range rc.Intervals {
		out[j] = Imbalance{Interval: name, Ratio: 1}
		if d == nil {
			continue
		}
		col := mat.Col(nil, j, d)
		out[j].Max = floats.Max(col)
		out[j].Mean = stat.Mean(col, nil)
		if out[j].Mean > 0 {
			out[j].Ratio = out[j].Max / out[j].Mean
		}
	}
	return out
}
