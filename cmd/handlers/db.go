package handlers

import (
	"blogsmith/internal/config"
	"blogsmith/internal/persistence"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewDBCmd creates the db command for the Postgres backend
func NewDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the Postgres backend",
		Long: `Manage the optional Postgres (Supabase) backend configured with
backend.database_url or SUPABASE_DB_URL.

Subcommands:
  migrate  Apply all pending migrations
  status   Show migration status
  watch    Print profile changes as they happen

Examples:
  blogsmith db migrate
  blogsmith db status
  blogsmith db watch`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(db *persistence.PostgresDB) error {
				n, err := persistence.NewMigrationManager(db).Migrate(cmd.Context())
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				if n == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "✅ Database is up to date")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Applied %d migrations\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(db *persistence.PostgresDB) error {
				status, err := persistence.NewMigrationManager(db).Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd, status)
				return nil
			})
		},
	})

	var channel string
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print profile changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Backend.DatabaseURL == "" {
				return errNoDatabase
			}
			if channel == "" {
				channel = cfg.Backend.Channel
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			changes, err := persistence.NewWatcher(cfg.Backend.DatabaseURL, channel).Watch(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Watching profile changes, press Ctrl+C to stop")
			for change := range changes {
				p := change.Profile
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s prevent_duplicates=%v category=%s\n",
					change.Operation, p.ID, p.PreventDuplicates, p.PreferredCategory)
			}
			return nil
		},
	}
	watchCmd.Flags().StringVar(&channel, "channel", "", "notification channel (default from config)")
	cmd.AddCommand(watchCmd)

	return cmd
}

var errNoDatabase = errors.New("database connection string not configured\n\n" +
	"Set one of:\n" +
	"  • backend.database_url in .blogsmith.yaml\n" +
	"  • SUPABASE_DB_URL or DATABASE_URL environment variable")

func withDatabase(ctx context.Context, fn func(*persistence.PostgresDB) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Backend.DatabaseURL == "" {
		return errNoDatabase
	}

	db, err := persistence.NewPostgresDB(cfg.Backend.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return fn(db)
}

func printMigrationStatus(cmd *cobra.Command, status []persistence.MigrationStatus) {
	out := cmd.OutOrStdout()
	if len(status) == 0 {
		fmt.Fprintln(out, "No migrations found")
		return
	}

	fmt.Fprintf(out, "%-10s %-10s %s\n", "Version", "Status", "Description")
	pending := 0
	for _, m := range status {
		state := "✅ applied"
		if !m.Applied {
			state = "⏳ pending"
			pending++
		}
		fmt.Fprintf(out, "%-10d %-10s %s\n", m.Version, state, m.Description)
	}

	fmt.Fprintf(out, "\nApplied: %d | Pending: %d | Total: %d\n", len(status)-pending, pending, len(status))
	if pending > 0 {
		fmt.Fprintln(out, "\nRun 'blogsmith db migrate' to apply pending migrations")
	}
}
