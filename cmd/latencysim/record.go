package main

import (
	"context"
	"fmt"
	"latencysim/internal/arbitrage"
	"latencysim/internal/config"
	"latencysim/internal/database"
	"latencysim/internal/exchange"
	"latencysim/internal/model"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// runRecord streams quotes for the configured duration, consolidates them
// into a tape and then sweeps the hits it found.
func runRecord(ctx context.Context, logger *slog.Logger, cfg *config.Config, repo *database.PostgresRepository) error {
	clients := make([]exchange.ExchangeClient, 0, len(cfg.Recorder.Exchanges))
	for _, name := range cfg.Recorder.Exchanges {
		client, err := exchange.NewClient(name, logger, cfg.Exchanges[name])
		if err != nil {
			return err
		}
		clients = append(clients, client)
	}
	if len(clients) < 2 {
		return fmt.Errorf("recording needs at least two exchanges, got %d", len(clients))
	}

	var sink database.Repository
	if repo != nil {
		sink = repo
	}
	consolidator := arbitrage.NewConsolidator(logger, sink, cfg.Recorder.MaxTradeQty)

	recordCtx, cancel := context.WithTimeout(ctx, cfg.Recorder.Duration)
	defer cancel()

	ticks := make(chan model.PriceTick, 256)
	g, gctx := errgroup.WithContext(recordCtx)
	for _, client := range clients {
		g.Go(func() error {
			return client.StartStream(gctx, ticks, cfg.Recorder.TradingPair)
		})
	}

	logger.Info("Recording started",
		"pair", cfg.Recorder.TradingPair,
		"exchanges", cfg.Recorder.Exchanges,
		"duration", cfg.Recorder.Duration,
	)
	consolidator.Run(gctx, ticks)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	quotes := consolidator.Tape()
	hits := consolidator.Hits()
	logger.Info("Recording finished", "snapshots", len(quotes.Snapshots), "hits", len(hits))

	if ctx.Err() != nil {
		return nil
	}
	return sweepAndReport(ctx, logger, cfg, repo, hits, quotes)
}
