package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"order-desk/internal/app"
	"order-desk/internal/connections/database"
	"order-desk/internal/microservices/notificator"
)

func NewSubscriberCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notification-subscriber",
		Short: "Consume order events from the configured broker and log them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load(cmd, opts, "notification-subscriber")
			if err != nil {
				return err
			}
			defer e.cancel()
			return notificator.Start(e.ctx, e.cfg, e.lg)
		},
	}
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load(cmd, opts, "migrate")
			if err != nil {
				return err
			}
			defer e.cancel()
			db, err := database.ConnectDB(e.ctx, e.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(e.ctx, db); err != nil {
				return err
			}
			e.lg.Info("schema_applied", nil)
			return nil
		},
	}
}

func NewSeedManagerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-manager",
		Short: "Create the configured manager account if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, "seed-manager", func(e *env, a *app.App) error {
				created, err := a.Identity.Service.SeedManager(e.ctx)
				if err != nil {
					return err
				}
				if created {
					cmd.Println("manager account created")
				} else {
					cmd.Println("manager account already exists")
				}
				return nil
			})
		},
	}
}

func NewItemsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Bulk catalog operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Upsert items from a CSV file (\"-\" reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, "catalog-import", func(e *env, a *app.App) error {
				res, err := a.Catalog.Service.ImportCSV(e.ctx, data)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				return enc.Encode(res)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the catalog as CSV (\"-\" writes stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, "catalog-export", func(e *env, a *app.App) error {
				data, err := a.Catalog.Service.ExportCSV(e.ctx)
				if err != nil {
					return err
				}
				if args[0] == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(args[0], data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", args[0], err)
				}
				return nil
			})
		},
	})
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
