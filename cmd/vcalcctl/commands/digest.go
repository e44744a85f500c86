package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/udisondev/vcalc/pkg/digest"
	"github.com/udisondev/vcalc/pkg/protocol"
)

// digest <text>: print the uppercase hex MD5 of text, or of salt+text.
func digestCmd() *cobra.Command {
	var salt string

	cmd := &cobra.Command{
		Use:   "digest <text>",
		Short: "Print the MD5 digest used by the handshake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if salt == "" {
				fmt.Fprintln(cmd.OutOrStdout(), digest.SumString(args[0]))
				return nil
			}
			if len(salt) != protocol.SaltSize || !protocol.IsHex(salt) {
				return fmt.Errorf("salt must be %d hex characters", protocol.SaltSize)
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest.Salted(salt, args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&salt, "salt", "", "16 hex character salt prepended to text")
	return cmd
}
