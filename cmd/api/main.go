package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/matti-app/matti/backend/internal/config"
	"github.com/matti-app/matti/backend/internal/handler"
	"github.com/matti-app/matti/backend/internal/jobs"
	"github.com/matti-app/matti/backend/internal/logging"
	"github.com/matti-app/matti/backend/internal/store"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "matti",
		Usage:   "Matti youth coaching chat backend",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			sweepCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// setup loads .env and the configuration and installs the root logger.
func setup(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	// .env is optional; the real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("configure logging: %w", err)
	}
	return cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API and the background sweeps",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.WithContext(ctx)

			deps, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.db.Close()

			var runner jobs.Runner
			if cfg.Jobs.Enabled {
				runner, err = newRunner(ctx, cfg, deps)
				if err != nil {
					return err
				}
				if err := runner.Start(ctx); err != nil {
					return fmt.Errorf("start background jobs: %w", err)
				}
			}

			router := handler.NewRouter(logger, *cfg, deps.services)
			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			logger.Info().
				Str("addr", cfg.Server.Addr).
				Str("assistant", deps.services.Coach.Assistant().Name).
				Str("database", string(deps.db.Dialect())).
				Bool("ai_enabled", cfg.AI.Enabled()).
				Msg("matti backend listening")

			serveErr := runServer(ctx, srv, cfg.Server.ShutdownTimeout)

			if runner != nil {
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := runner.Stop(stopCtx); err != nil {
					logger.Warn().Err(err).Msg("stop background jobs")
				}
			}
			return serveErr
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema (and River's tables on Postgres)",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			ctx := logger.WithContext(c.Context)

			db, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if db.Dialect() == store.Postgres {
				if err := jobs.MigrateRiver(ctx, cfg.Database.DSN); err != nil {
					return err
				}
			}
			logger.Info().Str("database", string(db.Dialect())).Msg("migrations applied")
			return nil
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Deliver due follow-ups and archive idle conversations once, then exit",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			ctx := logger.WithContext(c.Context)

			deps, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.db.Close()

			return deps.sweeps.RunOnce(ctx)
		},
	}
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
