package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// auth: connect, authenticate and disconnect.
func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Check credentials against the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}
