// Package pipeline wires the kppmap stages together: convert reads interval
// snapshots into the rank index and cost tables, aggregate reduces cell
// costs to rank costs, remap turns new assignments into migration plans.
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/notargets/kppmap/config"
	"github.com/notargets/kppmap/cost"
	"github.com/notargets/kppmap/diag"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
	"github.com/notargets/kppmap/partitions"
)

// Pipeline runs stages against one configuration
type Pipeline struct {
	cfg   config.Config
	dims  grid.Dims
	vars  diag.Variables
	delim rune
	log   *zap.Logger

	// open reads snapshots; tests swap in in-memory stores
	open cost.Opener
}

// New validates cfg and returns a pipeline logging to log
func New(cfg config.Config, log *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	delim, err := cfg.Delim()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:   cfg,
		dims:  cfg.Dims(),
		vars:  cfg.Vars(),
		delim: delim,
		log:   log,
		open:  cost.OpenNetCDF,
	}, nil
}

// Config returns the configuration the pipeline runs with
func (p *Pipeline) Config() config.Config { return p.cfg }

// loadRankIndex reads a rank index artifact and checks it fits the grid
func (p *Pipeline) loadRankIndex(path string) (*partitions.RankIndexTable, error) {
	t, err := partitions.ReadRankIndex(path, p.delim)
	if err != nil {
		return nil, err
	}
	if t.NumCells() != p.dims.NumCells() {
		return nil, fmt.Errorf("%s has %d cells, grid %dx%dx%d has %d: %w",
			path, t.NumCells(), p.dims.Faces, p.dims.Res, p.dims.Res, p.dims.NumCells(),
			errdefs.ErrAssertionFailed)
	}
	return t, nil
}

// requireFile maps a missing input onto ErrFileNotFound before any work starts
func requireFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, errdefs.ErrFileNotFound)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, errdefs.ErrInvalidArguments)
	}
	return nil
}
