// Package cli implements worldctl, the operator tool for checking policy files,
// diffing population snapshots offline and reading the audit trail.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	failLabel = color.New(color.FgRed).SprintFunc()
	warnLabel = color.New(color.FgYellow).SprintFunc()
	dimLabel  = color.New(color.FgHiBlack).SprintFunc()
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "worldctl",
		Short:         "Operator tooling for the world state engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(PolicyCmd())
	root.AddCommand(DiffCmd())
	root.AddCommand(AuditCmd())

	return root
}
