package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xenlk/xenlk/pkg/harness"
)

var verifyCmd = &cobra.Command{
	Use:     "verify <file>",
	Aliases: []string{"t"},
	Short:   "Verify the counter file written by soak runs",
	Long: `Verify the counter file that soak writers appended to. Each record must
carry the successor of the previous record's count; any gap means two
writers held the lock at once.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	if _, _, err := setup(); err != nil {
		return err
	}
	target := args[0]

	records, violations, err := harness.Verify(target)
	if err != nil {
		return err
	}
	for _, v := range violations {
		fmt.Fprintf(cmd.OutOrStdout(), "ERROR: %s\n", v)
	}
	if len(violations) > 0 {
		return fmt.Errorf("%d sequence violations in %d records", len(violations), records)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records, sequence intact\n", target, records)
	return nil
}
