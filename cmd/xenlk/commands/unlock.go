package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	unlockOwner    string
	unlockReadonly bool
)

var unlockCmd = &cobra.Command{
	Use:     "unlock <file>",
	Aliases: []string{"u"},
	Short:   "Release an advisory lock on a file",
	Long: `Release an advisory lock previously acquired on a file.

Owner and mode must match the acquire. Releasing a lock that no longer
exists succeeds; it may have been stolen in the meantime.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnlock,
}

func init() {
	unlockCmd.Flags().StringVar(&unlockOwner, "owner", "", "owner id (default: zero-padded pid)")
	unlockCmd.Flags().BoolVarP(&unlockReadonly, "readonly", "r", false, "the lock being released is a reader lock")
}

func runUnlock(cmd *cobra.Command, args []string) error {
	_, l, err := setup()
	if err != nil {
		return err
	}
	target := args[0]
	owner := resolveOwner(unlockOwner)

	if err := l.Release(target, owner, unlockReadonly); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s (owner %s, mode %s)\n",
		target, owner, modeName(unlockReadonly))
	return nil
}
