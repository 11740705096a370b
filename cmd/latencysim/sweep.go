package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"latencysim/internal/arbitrage"
	"latencysim/internal/config"
	"latencysim/internal/database"
	"latencysim/internal/dataset"
	"latencysim/internal/latency"
	"latencysim/internal/model"
	"latencysim/internal/report"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

func runSweep(ctx context.Context, logger *slog.Logger, cfg *config.Config, repo *database.PostgresRepository) error {
	opps, quotes, err := loadInputs(ctx, logger, cfg, repo)
	if err != nil {
		return err
	}
	return sweepAndReport(ctx, logger, cfg, repo, opps, quotes)
}

// loadInputs reads hits and tape from the configured source. Hits are
// detected from the tape when the source has none.
func loadInputs(ctx context.Context, logger *slog.Logger, cfg *config.Config, repo *database.PostgresRepository) ([]model.Opportunity, model.Tape, error) {
	var (
		opps   []model.Opportunity
		quotes model.Tape
		err    error
	)

	switch cfg.Input.Source {
	case "csv":
		if quotes, err = dataset.LoadTapeFile(cfg.Input.TapeCSV); err != nil {
			return nil, model.Tape{}, fmt.Errorf("load tape: %w", err)
		}
		opps, err = dataset.LoadOpportunitiesFile(cfg.Input.HitsCSV)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Hits file not found, detecting hits from the tape", "path", cfg.Input.HitsCSV)
			opps, err = nil, nil
		}
		if err != nil {
			return nil, model.Tape{}, fmt.Errorf("load hits: %w", err)
		}
	case "postgres":
		if repo == nil {
			return nil, model.Tape{}, errors.New("input source postgres needs database.host")
		}
		if quotes, err = repo.LoadTape(ctx, cfg.Input.FromMicros, cfg.Input.ToMicros); err != nil {
			return nil, model.Tape{}, err
		}
		if opps, err = repo.LoadOpportunities(ctx, cfg.Input.FromMicros, cfg.Input.ToMicros); err != nil {
			return nil, model.Tape{}, err
		}
	default:
		return nil, model.Tape{}, fmt.Errorf("unknown input source %q", cfg.Input.Source)
	}

	if len(opps) == 0 {
		if opps, err = arbitrage.DetectHits(quotes, cfg.Columns, cfg.Recorder.MaxTradeQty); err != nil {
			return nil, model.Tape{}, fmt.Errorf("detect hits: %w", err)
		}
	}

	logger.Info("Inputs loaded",
		"source", cfg.Input.Source,
		"opportunities", len(opps),
		"snapshots", len(quotes.Snapshots),
		"columns", len(quotes.Columns),
	)
	return opps, quotes, nil
}

func sweepAndReport(ctx context.Context, logger *slog.Logger, cfg *config.Config, repo *database.PostgresRepository, opps []model.Opportunity, quotes model.Tape) error {
	latencies, err := cfg.Latency.Latencies()
	if err != nil {
		return err
	}

	started := time.Now().UTC()
	est := latency.NewEstimator(logger, cfg.Columns)
	run, err := est.Sweep(ctx, opps, quotes, latencies, cfg.Latency.Workers)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	run.ID = uuid.New()
	run.StartedAt = started

	if err := report.PrintSweep(os.Stdout, run); err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	if repo != nil {
		if err := repo.SaveSweep(ctx, run); err != nil {
			return err
		}
		logger.Info("Sweep saved", "run", run.ID, "points", len(run.Points))
	}
	return nil
}
