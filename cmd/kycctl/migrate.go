package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tasdeeq.app/internal/migrate"
	"tasdeeq.app/internal/obs"
	"tasdeeq.app/internal/store/pg"
	"tasdeeq.app/migrations"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		dsn     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (defaults to store.dsn)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")

	// withManager opens the database for one subcommand.
	withManager := func(fn func(ctx context.Context, m *migrate.Manager) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			target := dsn
			if target == "" {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				target = cfg.Store.DSN
			}
			if target == "" {
				return errors.New("missing DSN: provide --dsn or TASDEEQ_STORE_DSN")
			}
			store, err := pg.Open(target, pg.DefaultPool())
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			m := migrate.NewManager(store.DB(), migrations.SQL(), migrations.Seeds(),
				migrate.WithLogger(obs.Logger().Named("migrate")))
			return fn(ctx, m)
		}
	}

	printAll := func(header string, items []string) {
		if len(items) == 0 {
			fmt.Fprintf(a.stdout, "%s: none\n", header)
			return
		}
		fmt.Fprintf(a.stdout, "%s:\n", header)
		for _, item := range items {
			fmt.Fprintf(a.stdout, "  %s\n", item)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				applied, err := m.Up(ctx)
				if err != nil {
					return err
				}
				printAll("applied", applied)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				name, err := m.Down(ctx)
				if errors.Is(err, migrate.ErrNothingApplied) {
					fmt.Fprintln(a.stdout, "nothing to roll back")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "rolled back %s\n", name)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Load demo seed data",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				applied, err := m.Seed(ctx)
				if err != nil {
					return err
				}
				printAll("seeded", applied)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied migrations",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				history, err := m.Status(ctx)
				if err != nil {
					return err
				}
				printAll("applied", history)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "pending",
			Short: "List migrations not yet applied",
			Args:  cobra.NoArgs,
			RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
				pending, err := m.Pending(ctx)
				if err != nil {
					return err
				}
				obs.Logger().Debug("pending migrations", zap.Int("count", len(pending)))
				printAll("pending", pending)
				return nil
			}),
		},
	)
	return cmd
}
