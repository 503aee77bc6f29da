// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/signup-desk/internal/config"
	"codeberg.org/oliverandrich/signup-desk/internal/database"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/server"
	"codeberg.org/oliverandrich/signup-desk/internal/services/activation"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// withDB opens the configured database without migrating it and passes it to fn.
func withDB(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, db *sqlx.DB) error) error {
	cfg := config.NewFromCLI(cmd)
	server.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()
	return fn(ctx, db)
}

func migrateCommand() *cli.Command {
	migration := func(name string, run func(ctx context.Context, db *sqlx.DB) error) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: "Migrate the database " + name,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withDB(ctx, cmd, func(ctx context.Context, db *sqlx.DB) error {
					if err := run(ctx, db); err != nil {
						return fmt.Errorf("migrate %s: %w", name, err)
					}
					version, err := database.Version(db.DB)
					if err != nil {
						return err
					}
					slog.Info("migration finished", "direction", name, "version", version)
					return nil
				})
			},
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage database migrations",
		Commands: []*cli.Command{
			migration("up", func(_ context.Context, db *sqlx.DB) error { return database.RunMigrations(db.DB) }),
			migration("down", func(_ context.Context, db *sqlx.DB) error { return database.MigrateDown(db.DB) }),
			migration("reset", func(_ context.Context, db *sqlx.DB) error { return database.MigrateReset(db.DB) }),
			{
				Name:  "status",
				Usage: "Print the applied migration version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(ctx, cmd, func(_ context.Context, db *sqlx.DB) error {
						version, err := database.Version(db.DB)
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.Root().Writer, "database version: %d\n", version)
						return nil
					})
				},
			},
		},
	}
}

func tokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Maintain activation tokens",
		Commands: []*cli.Command{
			{
				Name:  "prune",
				Usage: "Invalidate activation tokens past their expiry",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(ctx, cmd, func(ctx context.Context, db *sqlx.DB) error {
						n, err := activation.NewIssuer(repository.New(db)).PruneExpired(ctx)
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.Root().Writer, "invalidated %d expired tokens\n", n)
						return nil
					})
				},
			},
		},
	}
}
