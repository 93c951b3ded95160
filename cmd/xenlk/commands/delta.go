package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xenlk/xenlk/pkg/lock"
)

var deltaCmd = &cobra.Command{
	Use:     "delta <file>",
	Aliases: []string{"d"},
	Short:   "Report the age of the newest lock on a file",
	Long: `Report how many seconds ago the most recently refreshed lock on the file
was written. Holders that refresh their lock keep the delta small; a large
delta suggests an abandoned lock that may be worth stealing.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelta,
}

func runDelta(cmd *cobra.Command, args []string) error {
	_, l, err := setup()
	if err != nil {
		return err
	}
	target := args[0]

	age, err := l.Delta(target)
	if err != nil {
		if errors.Is(err, lock.ErrNoLock) {
			fmt.Fprintf(cmd.OutOrStdout(), "no lock held on %s\n", target)
			return nil
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "lock delta for %s is %d seconds\n",
		target, int64(age.Seconds()))
	return nil
}
