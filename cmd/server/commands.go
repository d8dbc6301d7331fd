package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/picketly/api/internal/config"
	"github.com/picketly/api/internal/server"
)

const version = "v1.0.0"

func newRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "picketly",
		Short:         "Picketly promise and artwork API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv file(s) to load before the environment (default .env)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(envFiles, cmd.ErrOrStderr())
		},
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), envFiles, cmd.ErrOrStderr())
		},
	}

	root.RunE = serve.RunE
	root.AddCommand(serve, migrate)
	return root
}

// setup loads configuration and builds the process logger. Failures are
// written to stderr because there is no logger yet.
func setup(envFiles []string, stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration:\n%v\n", err)
		return config.Config{}, nil, err
	}
	return cfg, newLogger(cfg, os.Stdout), nil
}

// newLogger writes JSON in production and human-readable text elsewhere.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func runServe(envFiles []string, stderr io.Writer) error {
	cfg, logger, err := setup(envFiles, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	deps, err := server.Open(openCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", err.Error()))
		return err
	}

	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		_ = deps.Close()
		logger.Error("failed to build routes", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runMigrate(ctx context.Context, envFiles []string, stderr io.Writer) error {
	cfg, logger, err := setup(envFiles, stderr)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := server.OpenStore(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		return err
	}
	if store == nil {
		return errors.New("no database configured")
	}
	defer store.Close()

	logger.Info("database is up to date", slog.String("driver", cfg.DB.Driver))
	return nil
}
