// Package cli implements the sift command line. Every command except serve
// runs the orchestrator in-process against the local database.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/sift/internal/app"
	"github.com/raysh454/sift/internal/logging"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

func Execute() error {
	return NewRoot().Execute()
}

func NewRoot() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "sift",
		Short:         "Multi-tool OSINT scan orchestrator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to sift.yaml (default: ./sift.yaml, then $XDG_CONFIG_HOME/sift/sift.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug|info|warn|error)")

	root.AddCommand(
		serveCmd(opts),
		scanCmd(opts),
		showCmd(opts),
		listCmd(opts),
		compareCmd(opts),
		toolsCmd(opts),
		workspaceCmd(opts),
		memberCmd(opts),
		tokenCmd(opts),
		versionCmd(),
	)
	return root
}

// withApp loads the configuration, opens the Application for the duration
// of fn and shuts it down afterwards.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), "sift", cfg.Logging.Level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("starting sift: %w", err)
	}
	defer func() {
		if err := a.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown", logging.Err(err))
		}
	}()
	return fn(ctx, a)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sift version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sift", app.Version)
		},
	}
}
