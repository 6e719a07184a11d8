package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/budgetapp/budget-api/internal/config"
	"github.com/budgetapp/budget-api/internal/storage/sqlstore"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "migrator",
		Usage: "apply or roll back the budget database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "database driver (postgres, pgx, sqlite); overrides config",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "data source name; overrides config",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					return withStorage(c, func(s *sqlstore.Storage) error {
						return s.Migrate()
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back all migrations",
				Action: func(c *cli.Context) error {
					return withStorage(c, func(s *sqlstore.Storage) error {
						return s.MigrateDown()
					})
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					return withStorage(c, func(s *sqlstore.Storage) error {
						version, dirty, ok, err := s.MigrationVersion()
						if err != nil {
							return err
						}
						if !ok {
							fmt.Fprintln(c.App.Writer, "no migrations applied")
							return nil
						}
						fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", version, dirty)
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStorage opens the database named by flags or config and runs fn.
func withStorage(c *cli.Context, fn func(s *sqlstore.Storage) error) error {
	driver, dsn := c.String("driver"), c.String("dsn")

	if driver == "" || dsn == "" {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		if driver == "" {
			driver = cfg.Storage.Driver
		}
		if dsn == "" {
			dsn = cfg.Storage.DSN()
		}
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	storage, err := sqlstore.New(driver, dsn, log)
	if err != nil {
		return err
	}
	defer storage.Stop()

	return fn(storage)
}
