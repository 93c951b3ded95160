package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xenlk/xenlk/internal/cli/prompt"
	"github.com/xenlk/xenlk/pkg/lock"
)

var (
	lockOwner    string
	lockReadonly bool
	lockForce    bool
	lockYes      bool
)

var lockCmd = &cobra.Command{
	Use:     "lock <file>",
	Aliases: []string{"l"},
	Short:   "Acquire an advisory lock on a file",
	Long: `Acquire an advisory lock on a file shared through a POSIX directory.

By default the lock is exclusive (writer). With --readonly the lock is shared
with other readers. Re-running with the same owner refreshes an already-held
lock.

With --force, foreign locks are removed instead of reported; a quiet period
is then observed so the previous holder can notice. Forcing prompts for
confirmation unless --yes is given.

The owner id defaults to the zero-padded pid of this process. Pass --owner
to survive across processes (a uuid works well).

Examples:
  # Writer lock with pid owner
  xenlk lock /mnt/shared/data.img

  # Reader lock with an explicit owner
  xenlk lock /mnt/shared/data.img --readonly --owner 42

  # Steal an abandoned lock
  xenlk lock /mnt/shared/data.img --force --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runLock,
}

func init() {
	lockCmd.Flags().StringVar(&lockOwner, "owner", "", "owner id (default: zero-padded pid)")
	lockCmd.Flags().BoolVarP(&lockReadonly, "readonly", "r", false, "take a shared reader lock")
	lockCmd.Flags().BoolVarP(&lockForce, "force", "f", false, "steal foreign locks instead of failing")
	lockCmd.Flags().BoolVarP(&lockYes, "yes", "y", false, "skip the confirmation prompt for --force")
}

func runLock(cmd *cobra.Command, args []string) error {
	_, l, err := setup()
	if err != nil {
		return err
	}
	target := args[0]
	owner := resolveOwner(lockOwner)

	if lockForce && !lockYes {
		ok, err := prompt.Confirm(
			fmt.Sprintf("Forcing removes any lock held on %s. Continue?", target), false)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("cancelled")
		}
	}

	if err := l.Acquire(target, owner, lockForce, lockReadonly); err != nil {
		switch {
		case errors.Is(err, lock.ErrHeldByWriter), errors.Is(err, lock.ErrHeldByReader):
			return fmt.Errorf("lock not acquired: %w", err)
		default:
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "locked %s (owner %s, mode %s)\n",
		target, owner, modeName(lockReadonly))
	return nil
}

func modeName(readonly bool) string {
	if readonly {
		return "reader"
	}
	return "writer"
}
