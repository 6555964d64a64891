// Package main is the entry point for the MovieBrain command-line catalog.
//
// main stays minimal. It reads configuration, builds the dependency chain
//
//	config → sqlite.DB → CatalogService → cli.CLI
//
// and runs the menu until the user leaves, the input ends or a signal arrives.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sakif/moviebrain/internal/cli"
	"github.com/sakif/moviebrain/internal/config"
	"github.com/sakif/moviebrain/internal/omdb"
	sqliteRepo "github.com/sakif/moviebrain/internal/repository/sqlite"
	"github.com/sakif/moviebrain/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Logs go to stderr so they never interleave with the menu on stdout.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// os.MkdirAll is a no-op when the directory already exists.
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database",
			slog.String("path", cfg.DBPath),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, sqliteRepo.ErrForeignSchema) {
			logger.Error("choose a new file with MOVIEBRAIN_DB_PATH; the existing one is left untouched")
		}
		os.Exit(1)
	}
	defer db.Close()

	catalog := service.NewCatalogService(db.Movies(), db.Users(), db.Associations(), logger)

	opts := cli.Options{ReportPath: cfg.ReportPath}
	if cfg.OMDbAPIKey != "" {
		client, err := omdb.New(omdb.Config{
			APIKey:  cfg.OMDbAPIKey,
			BaseURL: cfg.OMDbBaseURL,
			Timeout: cfg.OMDbTimeout,
		})
		if err != nil {
			logger.Error("failed to create OMDb client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		opts.Lookup = client
	} else {
		logger.Info("OMDB_API_KEY not set, movie details will be entered by hand")
	}

	// The menu blocks on stdin, so a signal cannot be delivered through a
	// context. Close the database and leave straight from the handler.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("shutting down", slog.String("signal", sig.String()))
		db.Close()
		os.Exit(130)
	}()

	if err := cli.New(catalog, os.Stdin, os.Stdout, logger, opts).Run(context.Background()); err != nil {
		logger.Error("session ended with an error", slog.String("error", err.Error()))
		db.Close()
		os.Exit(1)
	}
}
