// Package cmd implements the csp CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root csp command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "csp",
		Short:         "csp - content specification processor",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE:          rootRunE,
	}
	root.PersistentFlags().String(configFlag, "", "config file (default csp.yaml when present)")

	root.AddCommand(NewParseCmd(newDefaultParseReader()))
	root.AddCommand(NewValidateCmd(newDefaultValidateIO()))
	root.AddCommand(NewPushCmd(newDefaultPushIO()))
	root.AddCommand(NewWatchCmd(newDefaultWatchIO()))
	return root
}

func rootRunE(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}
