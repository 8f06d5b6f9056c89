// Package mapping joins a new cell assignment with the rank index table to
// tell every rank where each of its local cells moves.
package mapping

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/kppmap/assignment"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/partitions"
)

// Map is the migration plan of one assignment
type Map struct {
	Name string

	// Targets[rank][indexOnRank-1] is the rank the cell moves to
	Targets [][]int

	// Fragmentation[rank] counts the distinct target ranks of rank's cells
	Fragmentation []int
}

// NumRanks returns the number of source ranks
func (m *Map) NumRanks() int { return len(m.Targets) }

// Target returns where the cell at (rank, indexOnRank) moves
func (m *Map) Target(rank, indexOnRank int) (int, error) {
	if rank < 0 || rank >= len(m.Targets) || indexOnRank < 1 || indexOnRank > len(m.Targets[rank]) {
		return -1, fmt.Errorf("rank %d index %d not in mapping: %w", rank, indexOnRank, errdefs.ErrKeyNotFound)
	}
	return m.Targets[rank][indexOnRank-1], nil
}

// Build computes the plan for a, one worker per rank up to workers at a
// time. The table and the assignment must cover the same cells.
func Build(ctx context.Context, t *partitions.RankIndexTable, a *assignment.Assignment, workers int) (*Map, error) {
	if err := checkJoin(t, a); err != nil {
		return nil, err
	}

	m := &Map{
		Name:          a.Name,
		Targets:       make([][]int, t.NumRanks),
		Fragmentation: make([]int, t.NumRanks),
	}
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for r := 0; r < t.NumRanks; r++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			targets, frag, err := rankTargets(t, a, r)
			if err != nil {
				return err
			}
			m.Targets[r], m.Fragmentation[r] = targets, frag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

func checkJoin(t *partitions.RankIndexTable, a *assignment.Assignment) error {
	n, have := t.NumCells(), len(a.Targets)
	switch {
	case have < n:
		return fmt.Errorf("cell %d is in the rank index table but not in assignment %s: %w",
			have, a.Name, errdefs.ErrKeyNotFound)
	case have > n:
		return fmt.Errorf("cell %d is in assignment %s but not in the rank index table: %w",
			n, a.Name, errdefs.ErrKeyNotFound)
	}
	return nil
}

// rankTargets fills one rank's plan; it only reads shared state
func rankTargets(t *partitions.RankIndexTable, a *assignment.Assignment, rank int) ([]int, int, error) {
	cells := t.LocalToGlobal[rank]
	targets := make([]int, len(cells))
	distinct := make(map[int]struct{})
	for i, cell := range cells {
		target := a.Targets[cell]
		if target < 0 {
			return nil, 0, fmt.Errorf("assignment %s sends cell %d to rank %d: %w",
				a.Name, cell, target, errdefs.ErrAssertionFailed)
		}
		targets[i] = target
		distinct[target] = struct{}{}
	}
	return targets, len(distinct), nil
}

// Series is the plan of a batch of assignments, one per interval
type Series struct {
	// Interval IDs in increasing order; gaps are not filled
	Intervals []int

	// Targets[rank][k][indexOnRank-1] for the k-th interval
	Targets [][][]int

	// Fragmentation[k][rank]
	Fragmentation [][]int
}

// NumRanks returns the number of source ranks
func (s *Series) NumRanks() int { return len(s.Targets) }

// BuildSeries computes the plan for every interval of a batch
func BuildSeries(ctx context.Context, t *partitions.RankIndexTable, batch []assignment.Interval, workers int) (*Series, error) {
	s := &Series{
		Intervals:     make([]int, len(batch)),
		Targets:       make([][][]int, t.NumRanks),
		Fragmentation: make([][]int, len(batch)),
	}
	for r := range s.Targets {
		s.Targets[r] = make([][]int, len(batch))
	}

	for k, iv := range batch {
		if k > 0 && iv.ID <= batch[k-1].ID {
			return nil, fmt.Errorf("interval %d follows interval %d: %w",
				iv.ID, batch[k-1].ID, errdefs.ErrAssertionFailed)
		}
		m, err := Build(ctx, t, iv.Assignment, workers)
		if err != nil {
			return nil, fmt.Errorf("interval %d: %w", iv.ID, err)
		}
		s.Intervals[k] = iv.ID
		s.Fragmentation[k] = m.Fragmentation
		for r, targets := range m.Targets {
			s.Targets[r][k] = targets
		}
	}
	return s, nil
}
