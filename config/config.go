// Package config holds the kppmap configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"github.com/notargets/kppmap/cost"
	"github.com/notargets/kppmap/diag"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
)

// Config holds all pipeline configuration.
type Config struct {
	Grid      GridConfig      `toml:"grid"`
	Variables VariablesConfig `toml:"variables"`
	Snapshots SnapshotsConfig `toml:"snapshots"`
	Output    OutputConfig    `toml:"output"`
	Aggregate AggregateConfig `toml:"aggregate"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Logging   LoggingConfig   `toml:"logging"`
}

// GridConfig describes the diagnostics grid.
type GridConfig struct {
	Faces        int `toml:"faces"`
	Resolution   int `toml:"resolution"`
	Layers       int `toml:"layers"`
	ActiveLayers int `toml:"active_layers"`
}

// VariablesConfig names the snapshot variables.
type VariablesConfig struct {
	Cost        string `toml:"cost"`
	Rank        string `toml:"rank"`
	IndexOnRank string `toml:"index_on_rank"`
}

// SnapshotsConfig describes snapshot file names.
type SnapshotsConfig struct {
	Prefix string `toml:"prefix"`
	Suffix string `toml:"suffix"`
}

// OutputConfig names the artifacts.
type OutputConfig struct {
	RankIndex   string `toml:"rank_index"`
	RankGrid    string `toml:"rank_grid"`
	Costs       string `toml:"costs"`
	RankCosts   string `toml:"rank_costs"`
	MappingsDir string `toml:"mappings_dir"`
	Delimiter   string `toml:"delimiter"`
}

// AggregateConfig controls the rank reduction.
type AggregateConfig struct {
	Reducer string `toml:"reducer"`
}

// PipelineConfig controls concurrency.
type PipelineConfig struct {
	Workers int `toml:"workers"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// DefaultConfig returns the configuration of a C48 cubed-sphere run.
func DefaultConfig() Config {
	return Config{
		Grid: GridConfig{
			Faces:        6,
			Resolution:   48,
			Layers:       72,
			ActiveLayers: 59,
		},
		Variables: VariablesConfig{
			Cost:        "KppTotSteps",
			Rank:        "KppRank",
			IndexOnRank: "KppIndexOnRank",
		},
		Snapshots: SnapshotsConfig{
			Prefix: "GEOSChem.KppDiags.",
			Suffix: ".nc4",
		},
		Output: OutputConfig{
			RankIndex:   "RankIndex.csv",
			RankGrid:    "original.assignment",
			Costs:       "TotalSteps.csv",
			RankCosts:   "RankSteps.csv",
			MappingsDir: "Mappings",
			Delimiter:   ",",
		},
		Aggregate: AggregateConfig{
			Reducer: string(cost.Max),
		},
		Pipeline: PipelineConfig{
			Workers: 0, // one per interval or rank
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			MaxSizeMB: 50,
			MaxFiles:  5,
		},
	}
}

// LoadConfig reads config from path, falling back to defaults for every
// value the file does not set. An empty path or a missing file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %v: %w", path, err, errdefs.ErrInvalidArguments)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown keys %v: %w", path, undecoded, errdefs.ErrInvalidArguments)
	}
	return cfg, cfg.Validate()
}

// SaveConfig writes cfg to path.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if err := c.Dims().Validate(); err != nil {
		return fmt.Errorf("[grid]: %v: %w", err, errdefs.ErrInvalidArguments)
	}
	v := c.Variables
	if v.Cost == "" || v.Rank == "" || v.IndexOnRank == "" {
		return fmt.Errorf("[variables]: every variable name must be set: %w", errdefs.ErrInvalidArguments)
	}
	if _, err := c.Delim(); err != nil {
		return err
	}
	if _, err := cost.ParseReducer(c.Aggregate.Reducer); err != nil {
		return fmt.Errorf("[aggregate]: %w", err)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("[pipeline]: workers %d is negative: %w", c.Pipeline.Workers, errdefs.ErrInvalidArguments)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("[logging]: unknown format %q: %w", c.Logging.Format, errdefs.ErrInvalidArguments)
	}
	return nil
}

// Dims returns the grid description.
func (c Config) Dims() grid.Dims {
	return grid.Dims{
		Faces:        c.Grid.Faces,
		Res:          c.Grid.Resolution,
		Layers:       c.Grid.Layers,
		ActiveLayers: c.Grid.ActiveLayers,
	}
}

// Vars returns the snapshot variable names.
func (c Config) Vars() diag.Variables {
	return diag.Variables{
		Cost:        c.Variables.Cost,
		Rank:        c.Variables.Rank,
		IndexOnRank: c.Variables.IndexOnRank,
	}
}

// Naming returns the snapshot file naming.
func (c Config) Naming() diag.Naming {
	return diag.Naming{Prefix: c.Snapshots.Prefix, Suffix: c.Snapshots.Suffix}
}

// Delim returns the single-rune artifact delimiter.
func (c Config) Delim() (rune, error) {
	d := c.Output.Delimiter
	if d == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size == 0 || size != len(d) || r == '\n' || r == '\r' || r == '"' {
		return 0, fmt.Errorf("[output]: delimiter %q must be a single character: %w", d, errdefs.ErrInvalidArguments)
	}
	return r, nil
}
