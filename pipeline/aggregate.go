package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notargets/kppmap/cost"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/table"
)

// AggregateOptions control one aggregate run
type AggregateOptions struct {
	RankIndex string   // rank index artifact
	Costs     []string // wide or per-interval cost tables, merged in order
	Output    string   // rank cost table to write
	Reducer   string   // overrides [aggregate] reducer when set
	Force     bool     // overwrite Output
}

// Aggregate reduces cell costs to per-rank costs
func (p *Pipeline) Aggregate(ctx context.Context, opts AggregateOptions) (*cost.RankCosts, error) {
	if opts.RankIndex == "" || len(opts.Costs) == 0 || opts.Output == "" {
		return nil, fmt.Errorf("aggregate needs a rank index, cost tables and an output: %w",
			errdefs.ErrInvalidArguments)
	}
	name := p.cfg.Aggregate.Reducer
	if opts.Reducer != "" {
		name = opts.Reducer
	}
	reducer, err := cost.ParseReducer(name)
	if err != nil {
		return nil, err
	}

	if err := requireFile(opts.RankIndex); err != nil {
		return nil, err
	}
	for _, path := range opts.Costs {
		if err := requireFile(path); err != nil {
			return nil, err
		}
	}
	if !opts.Force && table.Exists(opts.Output) {
		return nil, fmt.Errorf("%s: %w", opts.Output, errdefs.ErrOutputExists)
	}

	t, err := p.loadRankIndex(opts.RankIndex)
	if err != nil {
		return nil, err
	}
	m := cost.NewMatrix(t.NumCells())
	for _, path := range opts.Costs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := cost.ReadMatrix(path, p.delim)
		if err != nil {
			return nil, err
		}
		if err := m.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	m.SortIntervals()

	rc, err := cost.Aggregate(m, t, reducer)
	if err != nil {
		return nil, err
	}
	if err := cost.WriteRankCosts(opts.Output, p.delim, rc); err != nil {
		return nil, err
	}

	p.log.Info("wrote rank costs",
		zap.String("path", opts.Output),
		zap.String("reducer", string(reducer)),
		zap.Int("ranks", rc.NumRanks),
		zap.Int("intervals", len(rc.Intervals)),
		zap.Int64("cell_cost", m.Total()))
	for _, imb := range rc.Imbalances() {
		p.log.Info("imbalance",
			zap.String("interval", imb.Interval),
			zap.Float64("max", imb.Max),
			zap.Float64("mean", imb.Mean),
			zap.Float64("ratio", imb.Ratio))
	}
	return rc, nil
}
