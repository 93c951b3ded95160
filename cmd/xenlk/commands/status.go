package commands

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/xenlk/xenlk/pkg/lock"
)

var statusCmd = &cobra.Command{
	Use:   "status <file>",
	Short: "List the locks currently held on a file",
	Long: `List every final lock currently held on the file, with the host and owner
that took it and how long ago it was last refreshed.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if _, _, err := setup(); err != nil {
		return err
	}
	target := args[0]

	holders, err := lock.Holders(target)
	if err != nil {
		return err
	}
	if len(holders) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no lock held on %s\n", target)
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Mode", "Host", "Owner", "Age"})
	for _, h := range holders {
		table.Append([]string{
			modeName(h.Readonly),
			h.Host,
			h.Owner,
			h.Age.String(),
		})
	}
	table.Render()
	return nil
}
