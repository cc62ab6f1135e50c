package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// colorEnabled mirrors the teacher's own terminal-color detection: disable
// styling when stdout isn't a TTY (piped into a file, captured by a script)
// so output stays plain and greppable.
var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

var (
	workspaceHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	workspaceErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workspaceOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// renderStyled applies style only when stdout is a terminal; a piped or
// redirected output stream gets the plain string instead.
func renderStyled(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

func newWorkspaceCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "workspace",
		Short: "Manage registered workspaces",
	}
	root.AddCommand(newWorkspaceListCmd())
	root.AddCommand(newWorkspaceRemoveCmd())
	return root
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workspaces and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			workspaces, err := a.reg.ListWorkspaces()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStyled(workspaceHeaderStyle, fmt.Sprintf("%-50s %s", "PATH", "STATUS")))
			for _, ws := range workspaces {
				status := string(ws.Status)
				styled := status
				switch ws.Status {
				case "error":
					styled = renderStyled(workspaceErrorStyle, status)
				case "indexed":
					styled = renderStyled(workspaceOKStyle, status)
				}
				fmt.Fprintf(out, "%-50s %s\n", ws.Path, styled)
			}
			return nil
		},
	}
}

func newWorkspaceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <workspace-path>",
		Short: "Deregister a workspace and delete its graph store data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.reg.RemoveWorkspace(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
