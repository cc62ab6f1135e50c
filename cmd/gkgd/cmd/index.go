package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <workspace-path>",
		Short: "Register a workspace (if new) and run a full index, one-shot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			path := args[0]
			if _, err := a.reg.RegisterWorkspace(path, Version); err != nil {
				return fmt.Errorf("failed to register workspace: %w", err)
			}
			if err := a.exec.IndexWorkspace(cmd.Context(), path); err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %s\n", path)
			return nil
		},
	}
}
