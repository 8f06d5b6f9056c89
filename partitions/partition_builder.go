package partitions

import (
	"fmt"
	"math"

	"github.com/notargets/kppmap/diag"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
)

// RankIndexBuilder derives the rank index table from a reference snapshot
type RankIndexBuilder struct {
	// Grid description
	Dims grid.Dims

	// Variable names in the snapshot
	Vars diag.Variables

	// Strict asserts shapes and zero padding of every variable read
	Strict bool
}

// Build creates the rank index table from s. The capability must have been
// resolved from the same data source; Minimal sources carry no rank index.
func (b *RankIndexBuilder) Build(s diag.Store, c diag.Capability) (*RankIndexTable, error) {
	// The cost variable is required even though only rank/index are sampled
	if !diag.HasKey(s, b.Vars.Cost) {
		return nil, fmt.Errorf("missing variable %s: %w", b.Vars.Cost, errdefs.ErrKeyNotFound)
	}
	if c != diag.WithRankIndex {
		return nil, fmt.Errorf("source has no %s/%s pair: %w",
			b.Vars.Rank, b.Vars.IndexOnRank, errdefs.ErrKeyNotFound)
	}

	if b.Strict {
		cost, err := s.Read(b.Vars.Cost)
		if err != nil {
			return nil, err
		}
		if err := diag.Strict(b.Vars.Cost, cost, b.Dims); err != nil {
			return nil, err
		}
	}

	rank, index, err := SampleRankIndex(s, b.Dims, b.Vars, b.Strict)
	if err != nil {
		return nil, err
	}
	return NewRankIndexTable(rank, index)
}

// SampleRankIndex reads the rank and index-on-rank columns from the first
// active layer. Assignment does not vary by layer, so one layer is enough.
func SampleRankIndex(s diag.Store, d grid.Dims, vars diag.Variables, strict bool) (rank, index []int, err error) {
	rank, err = sampleIntLayer(s, d, vars.Rank, strict)
	if err != nil {
		return nil, nil, err
	}
	index, err = sampleIntLayer(s, d, vars.IndexOnRank, strict)
	if err != nil {
		return nil, nil, err
	}
	return rank, index, nil
}

func sampleIntLayer(s diag.Store, d grid.Dims, key string, strict bool) ([]int, error) {
	arr, err := s.Read(key)
	if err != nil {
		return nil, err
	}
	if strict {
		if err := diag.Strict(key, arr, d); err != nil {
			return nil, err
		}
	}

	layer, err := diag.Layer(key, arr, d, 0)
	if err != nil {
		return nil, err
	}

	out := make([]int, len(layer))
	for cell, v := range layer {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("%s cell %d holds non-integer %g: %w",
				key, cell, v, errdefs.ErrAssertionFailed)
		}
		out[cell] = int(v)
	}
	return out, nil
}
