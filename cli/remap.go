package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notargets/kppmap/pipeline"
)

func newRemapCmd(a *app) *cobra.Command {
	var opts pipeline.RemapOptions
	cmd := &cobra.Command{
		Use:   "remap RANK_INDEX ASSIGNMENT",
		Short: "Turn a new assignment into per-rank migration plans",
		Long: `Remap joins a cell -> rank assignment with the rank index. ASSIGNMENT is
either one file or a directory of interval_<N>.<ext> files.

A single file is written as one table, <name>.csv, with no header: row r holds
the target rank of every cell of rank r, column i-1 the cell at index i on
that rank, and shorter rows are padded with empty fields. It also gets
<name>.exchange.csv with one row per cell (source_rank, pick_index,
target_rank, place_index) and <name>.RankIndex.csv with the layout the ranks
will have afterwards.

A directory is written as one rank_<r>.csv per rank with one row per interval.
Fragmentation is written alongside in both cases.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RankIndex, opts.Assignment = args[0], args[1]
			res, err := a.p.Remap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if res.Series != nil {
				fmt.Fprintf(a.stdout, "%s: %d intervals for %d ranks\n",
					res.Dir, len(res.Series.Intervals), res.Series.NumRanks())
				return nil
			}
			for r, f := range res.Map.Fragmentation {
				fmt.Fprintf(a.stdout, "Rank %d: %d\n", r, f)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory (default [output] mappings_dir)")
	return cmd
}
