package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"order-desk/internal/app"
	"order-desk/internal/common/logger"
	"order-desk/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "order-desk",
		Short:         "Order desk backend",
		Long:          "Point-of-sale order desk: catalog, staff accounts, order ledger and housekeeping jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log.level (debug|info|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAPICommand(opts))
	cmd.AddCommand(NewSweeperCommand(opts))
	cmd.AddCommand(NewNotifierCommand(opts))
	cmd.AddCommand(NewSubscriberCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedManagerCommand(opts))
	cmd.AddCommand(NewItemsCommand(opts))
	return cmd
}

// env is what every command starts from: config, logger and a context cancelled on SIGINT/SIGTERM.
type env struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	lg     *logger.Logger
}

func load(cmd *cobra.Command, opts *RootOptions, service string) (*env, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	lg := logger.NewWithWriter(service, os.Stdout, logger.ParseLevel(level))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	return &env{ctx: ctx, cancel: cancel, cfg: cfg, lg: lg}, nil
}

// withApp loads the config, opens the app and runs fn with it.
func withApp(cmd *cobra.Command, opts *RootOptions, service string, fn func(e *env, a *app.App) error) error {
	e, err := load(cmd, opts, service)
	if err != nil {
		return err
	}
	defer e.cancel()

	a, err := app.Open(e.ctx, e.cfg, e.lg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(e, a)
}
