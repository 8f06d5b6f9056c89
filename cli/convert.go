package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notargets/kppmap/pipeline"
)

func newConvertCmd(a *app) *cobra.Command {
	var opts pipeline.ConvertOptions
	cmd := &cobra.Command{
		Use:   "convert PATH",
		Short: "Build the rank index and cost tables from snapshots",
		Long: `Convert reads one snapshot file, or every snapshot in a directory, and
writes the rank index, the grid-shaped original assignment and the cost
table next to them. Existing artifacts are extended rather than rebuilt
unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Path = args[0]
			opts.Debug = a.debug
			res, err := a.p.Convert(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %s, %d intervals read, %d reused\n",
				res.Dir, res.Capability, len(res.Built), len(res.Reused))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "rebuild every artifact")
	cmd.Flags().BoolVarP(&opts.Separate, "separate", "s", false, "write one cost table per interval")
	return cmd
}
