// Package cmd provides the gkgd CLI commands: serve, index, workspace, and
// version, all sharing one config/registry/executor wiring that each
// subcommand builds with buildApp.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gkg/knowledgegraph/internal/analyzer"
	"github.com/gkg/knowledgegraph/internal/config"
	"github.com/gkg/knowledgegraph/internal/eventbus"
	"github.com/gkg/knowledgegraph/internal/executor"
	"github.com/gkg/knowledgegraph/internal/graphstore"
	"github.com/gkg/knowledgegraph/internal/logging"
	"github.com/gkg/knowledgegraph/internal/metrics"
	"github.com/gkg/knowledgegraph/internal/query"
	"github.com/gkg/knowledgegraph/internal/registry"
	"github.com/gkg/knowledgegraph/internal/watcher"
)

// Version is stamped at build time (ldflags), mirroring the teacher's own
// pkg/version.Version.
var Version = "dev"

var debugLogging bool

// app bundles the daemon's wired components, built once per CLI invocation
// by buildApp and shared across serve/index/workspace subcommands.
type app struct {
	cfg       *config.Config
	reg       *registry.Registry
	driver    graphstore.Driver
	bus       *eventbus.Bus
	replay    *eventbus.ReplayStore
	exec      *executor.Executor
	queries   *query.Service
	metrics   *metrics.Registry
	watcherMgr *watcher.Manager

	loggingCleanup func()
}

// buildApp loads config, sets up logging, and wires every C1-C9 component.
// Callers must invoke a.close() before exiting.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if debugLogging {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	driver := graphstore.Driver(cfg.Store.Driver)

	if err := os.MkdirAll(logging.WorkspaceFoldersDir(), 0o755); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create workspace data directory: %w", err)
	}
	reg := registry.New(logging.ManifestPath(), logging.LockPath(), logging.WorkspaceFoldersDir())

	replay, err := eventbus.OpenReplayStore(filepath.Join(logging.WorkspaceFoldersDir(), "gkg_events.bolt"))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open event replay store: %w", err)
	}

	bus := eventbus.New()
	analyzers := analyzer.NewRegistry(analyzer.NewGoAnalyzer(), analyzer.NewPythonAnalyzer())

	exec, err := executor.New(cfg.Indexing, reg, analyzers, driver, bus)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to build executor: %w", err)
	}

	queries, err := query.New(reg, driver)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to build query service: %w", err)
	}

	watcherOpts := watcher.Options{
		DebounceWindow:  cfg.Watcher.DebounceWindow,
		MaxHold:         cfg.Watcher.MaxHold,
		PollInterval:    cfg.Watcher.PollInterval,
		EventBufferSize: cfg.Watcher.EventBufferSize,
	}

	return &app{
		cfg:            cfg,
		reg:            reg,
		driver:         driver,
		bus:            bus,
		replay:         replay,
		exec:           exec,
		queries:        queries,
		metrics:        metrics.NewRegistry(),
		watcherMgr:     watcher.NewManager(watcherOpts, exec.IndexProject, bus),
		loggingCleanup: cleanup,
	}, nil
}

func (a *app) close() {
	a.watcherMgr.StopAll()
	_ = a.replay.Close()
	a.loggingCleanup()
}

// NewRootCmd builds the gkgd command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "gkgd",
		Short:   "Knowledge-graph indexing daemon",
		Version: Version,
	}
	root.SetVersionTemplate("gkgd version {{.Version}}\n")
	root.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newWorkspaceCmd())
	root.AddCommand(newVersionCmd())
	return root
}
