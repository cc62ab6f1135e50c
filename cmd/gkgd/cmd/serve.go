package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gkg/knowledgegraph/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: serve the HTTP query surface and watch registered workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			server.Version = Version
			srv := server.New(a.cfg.Server, a.reg, a.exec, a.queries, a.bus, a.replay, a.metrics)
			ln, err := srv.Listener()
			if err != nil {
				return fmt.Errorf("failed to bind server address (already running?): %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			workspaces, err := a.reg.ListWorkspaces()
			if err != nil {
				return fmt.Errorf("failed to list workspaces: %w", err)
			}
			for _, ws := range workspaces {
				if err := a.watcherMgr.Watch(ctx, ws.Path); err != nil {
					slog.Warn("failed to watch workspace", slog.String("workspace", ws.Path), slog.String("error", err.Error()))
				}
			}

			slog.Info("gkgd listening", slog.String("addr", ln.Addr().String()))
			return srv.Serve(ctx, ln)
		},
	}
}
