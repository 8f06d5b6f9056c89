package cost

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/kppmap/diag"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
	"github.com/notargets/kppmap/partitions"
)

// Opener opens the snapshot at path
type Opener func(path string) (diag.Store, error)

// OpenNetCDF is the default Opener
func OpenNetCDF(path string) (diag.Store, error) {
	return diag.OpenNetCDF(path)
}

// Builder reads interval snapshots into cost columns
type Builder struct {
	Dims grid.Dims
	Vars diag.Variables

	// Strict adds shape assertions to the padding and length checks
	Strict bool

	// CrossCheck, if set, requires every snapshot's rank and index columns
	// to equal the reference table
	CrossCheck *partitions.RankIndexTable

	// Workers bounds concurrent snapshot reads; <= 0 means one per snapshot
	Workers int

	Open   Opener
	Logger *zap.Logger
}

// Column is one interval's worth of cell costs
type Column struct {
	Interval string
	Values   []int64
}

// ColumnFrom computes the cost of every cell in s: the sum over active
// layers of each raw value rounded up
func (b *Builder) ColumnFrom(s diag.Store) ([]int64, error) {
	key := b.Vars.Cost
	if !diag.HasKey(s, key) {
		return nil, fmt.Errorf("missing variable %s: %w", key, errdefs.ErrKeyNotFound)
	}
	arr, err := s.Read(key)
	if err != nil {
		return nil, err
	}
	if b.Strict {
		if err := diag.CheckShape(key, arr, b.Dims); err != nil {
			return nil, err
		}
	}
	if err := diag.CheckActiveLength(key, arr, b.Dims); err != nil {
		return nil, err
	}
	if err := diag.CheckPadding(key, arr, b.Dims); err != nil {
		return nil, err
	}

	if b.CrossCheck != nil {
		if err := b.crossCheck(s); err != nil {
			return nil, err
		}
	}

	n := b.Dims.NumCells()
	costs := make([]int64, n)
	for l := 0; l < b.Dims.ActiveLayers; l++ {
		layer, err := diag.Layer(key, arr, b.Dims, l)
		if err != nil {
			return nil, err
		}
		for cell, v := range layer {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%s layer %d cell %d is %g: %w", key, l, cell, v, errdefs.ErrAssertionFailed)
			}
			c := math.Ceil(v)
			if c < 0 {
				return nil, fmt.Errorf("%s layer %d cell %d is negative (%g): %w",
					key, l, cell, v, errdefs.ErrAssertionFailed)
			}
			costs[cell] += int64(c)
		}
	}
	return costs, nil
}

func (b *Builder) crossCheck(s diag.Store) error {
	rank, index, err := partitions.SampleRankIndex(s, b.Dims, b.Vars, b.Strict)
	if err != nil {
		return err
	}
	if cell := b.CrossCheck.FirstMismatch(rank, index); cell >= 0 {
		return fmt.Errorf("cell %d rank/index disagrees with the reference rank index table: %w",
			cell, errdefs.ErrAssertionFailed)
	}
	return nil
}

// ColumnFromFile opens one snapshot, reads its cost column and closes it
func (b *Builder) ColumnFromFile(path string) (col []int64, err error) {
	open := b.Open
	if open == nil {
		open = OpenNetCDF
	}
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, s.Close())
	}()

	col, err = b.ColumnFrom(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return col, nil
}

// BuildAll reads every snapshot concurrently and returns their columns in
// snapshot order. The first failure cancels the remaining reads.
func (b *Builder) BuildAll(ctx context.Context, snaps []diag.Snapshot) ([]Column, error) {
	log := b.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cols := make([]Column, len(snaps))
	g, ctx := errgroup.WithContext(ctx)
	if b.Workers > 0 {
		g.SetLimit(b.Workers)
	}
	for i, snap := range snaps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values, err := b.ColumnFromFile(snap.Path)
			if err != nil {
				return err
			}
			log.Debug("read cost column",
				zap.String("interval", snap.Interval),
				zap.String("path", snap.Path))
			cols[i] = Column{Interval: snap.Interval, Values: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cols, nil
}
