package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"world-state-engine/internal/adapters/catalog"
	"world-state-engine/internal/config"
)

func PolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect policy files",
	}
	cmd.AddCommand(policyCheckCmd())
	return cmd
}

func policyCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a policy file without starting the engine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "policy.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			out := cmd.OutOrStdout()

			policy, err := config.LoadPolicy(path)
			if err != nil {
				fmt.Fprintf(out, "%s %s\n", failLabel("FAIL"), path)
				return err
			}
			if _, err := catalog.NewStatic(policy.Catalog); err != nil {
				fmt.Fprintf(out, "%s %s\n", failLabel("FAIL"), path)
				return fmt.Errorf("catalog: %w", err)
			}

			fmt.Fprintf(out, "%s %s (version %s)\n", okLabel("OK"), path, policy.Version)
			fmt.Fprintf(out, "  skills:    %d\n", len(policy.Catalog.Skills))
			fmt.Fprintf(out, "  zones:     %d\n", len(policy.Catalog.Zones))
			fmt.Fprintf(out, "  templates: %d\n", len(policy.Catalog.Templates))
			fmt.Fprintf(out, "  regions:   %d\n", len(policy.Catalog.Regions))
			if len(policy.Catalog.Regions) == 0 {
				fmt.Fprintf(out, "  %s no regions seeded; control shifts will 404 until regions exist\n", warnLabel("warning:"))
			}
			return nil
		},
	}
	return cmd
}
