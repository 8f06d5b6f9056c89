package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/notargets/kppmap/pipeline"
)

func newAggregateCmd(a *app) *cobra.Command {
	var opts pipeline.AggregateOptions
	cmd := &cobra.Command{
		Use:   "aggregate RANK_INDEX COSTS...",
		Short: "Reduce cell costs to per-rank costs",
		Long: `Aggregate folds every interval of the cost tables over the cells of each
rank: by default the max, the bottleneck rank of a lock-step step. Several
per-interval tables are merged in the order given.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RankIndex = args[0]
			opts.Costs = args[1:]
			if opts.Output == "" {
				opts.Output = filepath.Join(filepath.Dir(opts.RankIndex), a.p.Config().Output.RankCosts)
			}
			rc, err := a.p.Aggregate(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INTERVAL\tMAX\tMEAN\tMAX/MEAN")
			for _, imb := range rc.Imbalances() {
				fmt.Fprintf(w, "%s\t%.0f\t%.1f\t%.3f\n", imb.Interval, imb.Max, imb.Mean, imb.Ratio)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "rank cost table (default next to RANK_INDEX)")
	cmd.Flags().StringVar(&opts.Reducer, "reducer", "", "max or sum (default from config)")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing output")
	return cmd
}
