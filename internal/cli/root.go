// Package cli wires the connector's command tree.
package cli

import "github.com/spf13/cobra"

// flags shared across commands.
var (
	flagVerbose bool
	flagConfig  string
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fivetran-bitbucket-connector",
		Short:         "Bitbucket to Fivetran sync connector",
		Long:          "Pulls pull requests, activities, participants and users from Bitbucket Cloud and emits them as Fivetran batch responses.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a TOML config profile")

	root.AddCommand(newLambdaCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the command tree.
func Execute() error {
	return NewRootCmd().Execute()
}
