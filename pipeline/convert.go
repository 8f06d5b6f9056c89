package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/notargets/kppmap/cost"
	"github.com/notargets/kppmap/diag"
	"github.com/notargets/kppmap/partitions"
	"github.com/notargets/kppmap/table"
)

// ConvertOptions control one convert run
type ConvertOptions struct {
	Path     string // snapshot file or directory of snapshots
	Force    bool   // rebuild every artifact from scratch
	Separate bool   // one cost table per interval instead of one wide table
	Debug    bool   // assert shapes and cross-check rank columns
}

// ConvertResult reports what a convert run produced
type ConvertResult struct {
	Dir        string
	Capability diag.Capability
	RankIndex  *partitions.RankIndexTable // nil for Minimal sources without a prior artifact
	Built      []string                   // intervals read from snapshots
	Reused     []string                   // intervals taken from existing artifacts

	// Repartitioned is set when the snapshots carry a different rank
	// layout than the existing rank index; every artifact is rebuilt
	Repartitioned bool
}

// Convert reads the snapshots at opts.Path and writes the rank index and
// cost artifacts next to them
func (p *Pipeline) Convert(ctx context.Context, opts ConvertOptions) (*ConvertResult, error) {
	snaps, dir, err := diag.Discover(opts.Path, p.cfg.Naming())
	if err != nil {
		return nil, err
	}
	log := p.log.With(zap.String("dir", dir))
	log.Info("discovered snapshots",
		zap.Int("count", len(snaps)),
		zap.String("first", snaps[0].Interval),
		zap.String("last", snaps[len(snaps)-1].Interval))

	res := &ConvertResult{Dir: dir}
	if err := p.rankIndex(opts, snaps[0], res, log); err != nil {
		return nil, err
	}

	b := &cost.Builder{
		Dims:    p.dims,
		Vars:    p.vars,
		Strict:  opts.Debug,
		Workers: p.cfg.Pipeline.Workers,
		Open:    p.open,
		Logger:  log,
	}
	if opts.Debug && res.Capability == diag.WithRankIndex {
		b.CrossCheck = res.RankIndex
	}

	if res.Repartitioned {
		opts.Force = true
	}
	if opts.Separate {
		err = p.separatedCosts(ctx, opts, b, snaps, res, log)
	} else {
		err = p.wideCosts(ctx, opts, b, snaps, res, log)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// rankIndex resolves the capability from the reference snapshot and
// reuses or rebuilds the rank index artifacts
func (p *Pipeline) rankIndex(opts ConvertOptions, ref diag.Snapshot, res *ConvertResult, log *zap.Logger) (err error) {
	s, err := p.open(ref.Path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close())
	}()

	res.Capability, err = diag.Detect(s, p.vars)
	if err != nil {
		return fmt.Errorf("%s: %w", ref.Path, err)
	}
	log.Debug("resolved capability",
		zap.String("snapshot", ref.Path),
		zap.Stringer("capability", res.Capability))

	indexPath := filepath.Join(res.Dir, p.cfg.Output.RankIndex)
	if !opts.Force && table.Exists(indexPath) {
		t, err := partitions.ReadRankIndex(indexPath, p.delim)
		switch {
		case err != nil:
			log.Warn("rebuilding unreadable rank index", zap.String("path", indexPath), zap.Error(err))
		case t.NumCells() != p.dims.NumCells():
			log.Warn("rebuilding rank index for a different grid",
				zap.String("path", indexPath),
				zap.Int("cells", t.NumCells()),
				zap.Int("want", p.dims.NumCells()))
		default:
			cell, err := p.staleCell(s, t, res.Capability, opts.Debug)
			if err != nil {
				return fmt.Errorf("%s: %w", ref.Path, err)
			}
			if cell < 0 {
				log.Info("reusing rank index", zap.String("path", indexPath), zap.Int("ranks", t.NumRanks))
				res.RankIndex = t
				return nil
			}
			log.Warn("rank layout changed, rebuilding rank index and cost tables",
				zap.String("path", indexPath),
				zap.String("snapshot", ref.Path),
				zap.Int("cell", cell))
			res.Repartitioned = true
		}
	}

	if res.Capability != diag.WithRankIndex {
		log.Info("snapshots carry no rank index, skipping rank index export",
			zap.String("rank", p.vars.Rank),
			zap.String("index_on_rank", p.vars.IndexOnRank))
		return nil
	}

	rb := &partitions.RankIndexBuilder{Dims: p.dims, Vars: p.vars, Strict: opts.Debug}
	t, err := rb.Build(s, res.Capability)
	if err != nil {
		return fmt.Errorf("%s: %w", ref.Path, err)
	}
	if err := partitions.WriteRankIndex(indexPath, p.delim, t); err != nil {
		return err
	}
	gridPath := filepath.Join(res.Dir, p.cfg.Output.RankGrid)
	if err := partitions.WriteRankGrid(gridPath, ',', p.dims, t); err != nil {
		return err
	}
	log.Info("wrote rank index",
		zap.String("path", indexPath),
		zap.String("grid", gridPath),
		zap.Int("ranks", t.NumRanks),
		zap.Int("max_cells_per_rank", t.MaxCellsPerRank()))
	res.RankIndex = t
	return nil
}

// staleCell returns the first cell whose rank or index on rank in s differs
// from t, or -1. Minimal sources cannot contradict an existing table.
func (p *Pipeline) staleCell(s diag.Store, t *partitions.RankIndexTable, c diag.Capability, strict bool) (int, error) {
	if c != diag.WithRankIndex {
		return -1, nil
	}
	rank, index, err := partitions.SampleRankIndex(s, p.dims, p.vars, strict)
	if err != nil {
		return 0, err
	}
	return t.FirstMismatch(rank, index), nil
}

// wideCosts adds the intervals missing from the cost table, keeping the
// columns in interval order
func (p *Pipeline) wideCosts(ctx context.Context, opts ConvertOptions, b *cost.Builder,
	snaps []diag.Snapshot, res *ConvertResult, log *zap.Logger) error {
	path := filepath.Join(res.Dir, p.cfg.Output.Costs)

	m := cost.NewMatrix(p.dims.NumCells())
	if !opts.Force && table.Exists(path) {
		prior, err := cost.ReadMatrix(path, p.delim)
		switch {
		case err != nil:
			log.Warn("rebuilding unreadable cost table", zap.String("path", path), zap.Error(err))
		case prior.Cells != m.Cells:
			log.Warn("rebuilding cost table for a different grid",
				zap.String("path", path), zap.Int("cells", prior.Cells), zap.Int("want", m.Cells))
		default:
			m = prior
			res.Reused = append(res.Reused, prior.Intervals...)
		}
	}

	var todo []diag.Snapshot
	for _, snap := range snaps {
		if !m.Has(snap.Interval) {
			todo = append(todo, snap)
		}
	}
	if len(todo) == 0 {
		log.Info("cost table up to date", zap.String("path", path), zap.Int("intervals", len(m.Intervals)))
		return nil
	}

	cols, err := b.BuildAll(ctx, todo)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if err := m.AppendColumn(c.Interval, c.Values); err != nil {
			return err
		}
		res.Built = append(res.Built, c.Interval)
	}
	m.SortIntervals()
	if err := cost.WriteMatrix(path, p.delim, m); err != nil {
		return err
	}
	log.Info("wrote cost table",
		zap.String("path", path),
		zap.Int("new", len(cols)),
		zap.Int("intervals", len(m.Intervals)))
	return nil
}

// separatedCosts writes one table per interval, skipping existing ones
func (p *Pipeline) separatedCosts(ctx context.Context, opts ConvertOptions, b *cost.Builder,
	snaps []diag.Snapshot, res *ConvertResult, log *zap.Logger) error {
	var todo []diag.Snapshot
	for _, snap := range snaps {
		if !opts.Force && table.Exists(p.intervalPath(res.Dir, snap.Interval)) {
			res.Reused = append(res.Reused, snap.Interval)
			continue
		}
		todo = append(todo, snap)
	}
	if len(todo) == 0 {
		log.Info("interval cost tables up to date", zap.Int("intervals", len(snaps)))
		return nil
	}

	cols, err := b.BuildAll(ctx, todo)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if err := cost.WriteColumn(p.intervalPath(res.Dir, c.Interval), p.delim, c); err != nil {
			return err
		}
		res.Built = append(res.Built, c.Interval)
	}
	log.Info("wrote interval cost tables", zap.Int("new", len(cols)), zap.Int("skipped", len(res.Reused)))
	return nil
}

func (p *Pipeline) intervalPath(dir, interval string) string {
	return filepath.Join(dir, interval+".csv")
}
