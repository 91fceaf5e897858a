package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build metadata, overridden at link time.
var (
	version = "dev"
	commit  = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the connector version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fivetran-bitbucket-connector %s (%s)\n", version, commit)
		},
	}
}
