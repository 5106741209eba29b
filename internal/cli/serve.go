package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"order-desk/internal/app"
	"order-desk/internal/app/api"
)

// NewServeCommand runs the API with both housekeeping jobs in one process.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, expiry sweeper and expiry notifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "order-desk", func(e *env, a *app.App) error {
				jobs := a.Housekeeping()
				g, ctx := errgroup.WithContext(e.ctx)
				g.Go(func() error { return api.Run(ctx, a) })
				g.Go(func() error { return jobs.Sweeper.Run(ctx) })
				g.Go(func() error { return jobs.Notifier.Run(ctx) })
				return g.Wait()
			})
		},
	}
}

func NewAPICommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Run only the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "api", func(e *env, a *app.App) error {
				return api.Run(e.ctx, a)
			})
		},
	}
}

func NewSweeperCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweeper",
		Short: "Expire stale pending orders on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "sweeper", func(e *env, a *app.App) error {
				return a.Housekeeping().Sweeper.Run(e.ctx)
			})
		},
	}
}

func NewNotifierCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notifier",
		Short: "Mail managers about expiring items once a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "expiry-notifier", func(e *env, a *app.App) error {
				return a.Housekeeping().Notifier.Run(e.ctx)
			})
		},
	}
}

// NewSweepCommand runs a single sweep and prints how many orders expired.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale pending orders once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "sweeper", func(e *env, a *app.App) error {
				n, err := a.Housekeeping().Sweeper.RunOnce(e.ctx)
				if err != nil {
					return err
				}
				cmd.Printf("%d orders marked as expired\n", n)
				return nil
			})
		},
	}
}
