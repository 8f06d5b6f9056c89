package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/notargets/kppmap/mapping"
)

func newDumpCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dump SNAPSHOT",
		Short: "List the variables of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.p.Dump(args[0], out, a.stdout)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write every variable to <out>/<name>.txt")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "compare SNAPSHOT_A SNAPSHOT_B",
		Short: "Compare two snapshots variable by variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.p.Compare(args[0], args[1], threshold)
			if c != nil {
				for _, k := range c.OnlyInA {
					fmt.Fprintf(a.stdout, "only in %s: %s\n", args[0], k)
				}
				for _, k := range c.OnlyInB {
					fmt.Fprintf(a.stdout, "only in %s: %s\n", args[1], k)
				}
				for _, k := range c.ShapeMismatch {
					fmt.Fprintf(a.stdout, "shape mismatch: %s\n", k)
				}
				for _, k := range c.Differing() {
					fmt.Fprintf(a.stdout, "differs: %s (max |a-b| = %g)\n", k, c.MaxDiff[k])
				}
				if err == nil {
					fmt.Fprintf(a.stdout, "%d variables match within %g\n", len(c.MaxDiff), threshold)
				}
			}
			return err
		},
	}
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "largest tolerated absolute difference")
	return cmd
}

func newHistogramCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "histogram FRAGMENTATION",
		Short: "Count ranks by the number of ranks their cells move to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bins, err := a.p.Histogram(args[0])
			if err != nil {
				return err
			}
			if out != "" {
				delim, err := a.p.Config().Delim()
				if err != nil {
					return err
				}
				return mapping.WriteHistogram(out, delim, bins)
			}
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TARGETS\tRANKS")
			for _, b := range bins {
				fmt.Fprintf(w, "%d\t%d\n", b.Targets, b.Ranks)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the histogram table instead of printing it")
	return cmd
}
