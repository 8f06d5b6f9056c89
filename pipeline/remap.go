package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/notargets/kppmap/assignment"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/mapping"
)

// RemapOptions control one remap run
type RemapOptions struct {
	RankIndex  string // rank index artifact
	Assignment string // assignment file, or directory of interval_<N> files
	OutDir     string // defaults to [output] mappings_dir
}

// RemapResult holds the plan written by a remap run. Single assignments
// set Map and Exchange, batches set Series.
type RemapResult struct {
	Dir      string
	Map      *mapping.Map
	Exchange *mapping.Exchange
	Series   *mapping.Series
}

// Remap joins new assignments with the rank index and writes migration plans
func (p *Pipeline) Remap(ctx context.Context, opts RemapOptions) (*RemapResult, error) {
	if opts.RankIndex == "" || opts.Assignment == "" {
		return nil, fmt.Errorf("remap needs a rank index and an assignment: %w", errdefs.ErrInvalidArguments)
	}
	if err := requireFile(opts.RankIndex); err != nil {
		return nil, err
	}
	info, err := os.Stat(opts.Assignment)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", opts.Assignment, errdefs.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", opts.Assignment, err)
	}

	t, err := p.loadRankIndex(opts.RankIndex)
	if err != nil {
		return nil, err
	}
	res := &RemapResult{Dir: opts.OutDir}
	if res.Dir == "" {
		res.Dir = p.cfg.Output.MappingsDir
	}
	workers := p.cfg.Pipeline.Workers

	if info.IsDir() {
		batch, err := assignment.LoadDir(opts.Assignment, p.delim, t.NumCells(), p.log)
		if err != nil {
			return nil, err
		}
		res.Series, err = mapping.BuildSeries(ctx, t, batch, workers)
		if err != nil {
			return nil, err
		}
		if err := mapping.WriteSeries(res.Dir, p.delim, res.Series); err != nil {
			return nil, err
		}
		p.log.Info("wrote migration plan series",
			zap.String("dir", res.Dir),
			zap.Int("intervals", len(res.Series.Intervals)),
			zap.Int("ranks", res.Series.NumRanks()))
		return res, nil
	}

	a, err := assignment.Load(opts.Assignment, p.delim, t.NumCells())
	if err != nil {
		return nil, err
	}
	res.Map, err = mapping.Build(ctx, t, a, workers)
	if err != nil {
		return nil, err
	}
	res.Exchange, err = mapping.NewExchange(t, a)
	if err != nil {
		return nil, err
	}
	if err := mapping.WriteMap(res.Dir, p.delim, res.Map); err != nil {
		return nil, err
	}
	if err := mapping.WriteExchange(res.Dir, p.delim, res.Map.Name, res.Exchange); err != nil {
		return nil, err
	}

	moved := 0
	for src, row := range res.Exchange.Counts() {
		for dst, n := range row {
			if src != dst {
				moved += n
			}
		}
	}
	p.log.Info("wrote migration plan",
		zap.String("path", mapping.MapPath(res.Dir, res.Map)),
		zap.Int("ranks", res.Map.NumRanks()),
		zap.Int("target_ranks", res.Exchange.NumTargets),
		zap.Int("moved_cells", moved))
	return res, nil
}
