package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/config"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/migrations"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/repository"
	"github.com/urfave/cli/v2"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openDB(cfg *config.Config) (*sql.DB, error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}

// withDB loads config, opens the database and hands both to fn.
func withDB(fn func(cfg *config.Config, db *sql.DB) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		return fn(cfg, db)
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to read .env file", "error", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the database schema and run maintenance tasks",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withDB(func(_ *config.Config, db *sql.DB) error {
					return migrations.Up(db)
				}),
			},
			{
				Name:  "down",
				Usage: "roll back the latest migration",
				Action: withDB(func(_ *config.Config, db *sql.DB) error {
					return migrations.Down(db)
				}),
			},
			{
				Name:  "status",
				Usage: "print the state of every migration",
				Action: withDB(func(_ *config.Config, db *sql.DB) error {
					return migrations.Status(db)
				}),
			},
			{
				Name:  "repair-bulk-flags",
				Usage: "mark applications recorded under staff accounts as bulk",
				Action: withDB(func(cfg *config.Config, db *sql.DB) error {
					n, err := repository.NewRepository(cfg, db).RepairBulkFlags()
					if err != nil {
						return err
					}
					slog.Info("bulk flags repaired", "updated", n)
					return nil
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}
