package main

import (
	"context"
	"flag"
	"fmt"
	"latencysim/internal/config"
	"latencysim/internal/database"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	mode := flag.String("mode", "sweep", "sweep: estimate realized profit over latencies | record: capture a live tape")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "host", cfg.Database.Host)
		os.Exit(1)
	}
	if repo != nil {
		defer repo.Close()
	}

	switch *mode {
	case "sweep":
		err = runSweep(ctx, logger, &cfg, repo)
	case "record":
		err = runRecord(ctx, logger, &cfg, repo)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Error("latencysim failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

// openRepository returns nil when no database is configured.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (*database.PostgresRepository, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	repo, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
