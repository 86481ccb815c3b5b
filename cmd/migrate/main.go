// Command migrate applies the embedded schema migrations.
//
//	migrate up          apply every pending migration
//	migrate down [N]    roll back N migrations (default 1)
//	migrate goto V      migrate to version V
//	migrate force V     set the version without running migrations
//	migrate status      print the current version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nyashahama/gallery-paywall-backend/internal/config"
	"github.com/nyashahama/gallery-paywall-backend/internal/db"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the gallery paywall database schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "postgres URL (default $DATABASE_URL)")

	open := func() (*migrate.Migrate, error) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
		cfg := config.Config{
			DatabaseURL:        databaseURL,
			DatabaseServiceKey: os.Getenv("DATABASE_SERVICE_KEY"),
		}
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("missing required env var: DATABASE_URL")
		}
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		return db.NewMigrator(dsn)
	}

	root.AddCommand(
		newUpCommand(open),
		newDownCommand(open),
		newGotoCommand(open),
		newForceCommand(open),
		newStatusCommand(open),
	)
	return root
}

type opener func() (*migrate.Migrate, error)

// withMigrator opens a migrator, runs fn and closes it.
func withMigrator(open opener, fn func(m *migrate.Migrate) error) (err error) {
	m, err := open()
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()
	return fn(m)
}

func newUpCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(open, func(m *migrate.Migrate) error {
				err := m.Up()
				if errors.Is(err, migrate.ErrNoChange) {
					cmd.Println("no change: schema is up to date")
					return nil
				}
				if err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				cmd.Println("migrations applied")
				return nil
			})
		},
	}
}

func newDownCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back the last N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("N must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			return withMigrator(open, func(m *migrate.Migrate) error {
				if err := m.Steps(-steps); err != nil {
					return fmt.Errorf("migrate down %d: %w", steps, err)
				}
				cmd.Printf("rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
}

func newGotoCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "goto V",
		Short: "Migrate up or down to version V",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("V must be a version number, got %q", args[0])
			}
			return withMigrator(open, func(m *migrate.Migrate) error {
				if err := m.Migrate(uint(v)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migrate goto %d: %w", v, err)
				}
				cmd.Printf("at version %d\n", v)
				return nil
			})
		},
	}
}

func newForceCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "force V",
		Short: "Set the schema version without running migrations (clears the dirty flag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("V must be a version number, got %q", args[0])
			}
			return withMigrator(open, func(m *migrate.Migrate) error {
				if err := m.Force(v); err != nil {
					return fmt.Errorf("migrate force %d: %w", v, err)
				}
				cmd.Printf("forced version %d\n", v)
				return nil
			})
		},
	}
}

func newStatusCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(open, func(m *migrate.Migrate) error {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					cmd.Println("no migrations applied")
					return nil
				}
				if err != nil {
					return fmt.Errorf("read version: %w", err)
				}
				cmd.Printf("version %d (dirty=%t)\n", v, dirty)
				return nil
			})
		},
	}
}
