package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xenlk/xenlk/pkg/harness"
)

var (
	perfOwner      string
	perfIterations int
)

var perfCmd = &cobra.Command{
	Use:     "perf <file>",
	Aliases: []string{"p"},
	Short:   "Measure lock take and reassert throughput",
	Long: `Measure lock throughput: the first acquire takes the lock, every further
iteration exercises the reassert path, and the lock is released once at the
end.`,
	Args: cobra.ExactArgs(1),
	RunE: runPerf,
}

func init() {
	perfCmd.Flags().StringVar(&perfOwner, "owner", "", "owner id (default: zero-padded pid)")
	perfCmd.Flags().IntVarP(&perfIterations, "iterations", "n", 100000, "number of acquires")
}

func runPerf(cmd *cobra.Command, args []string) error {
	_, l, err := setup()
	if err != nil {
		return err
	}
	target := args[0]
	owner := resolveOwner(perfOwner)

	elapsed, err := harness.Perf(l, target, owner, perfIterations)
	if err != nil {
		return err
	}
	rate := float64(perfIterations) / elapsed.Seconds()
	fmt.Fprintf(cmd.OutOrStdout(), "%d acquires in %s (%.0f/s)\n",
		perfIterations, elapsed.Truncate(time.Millisecond), rate)
	return nil
}
