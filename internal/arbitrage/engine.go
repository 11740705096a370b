package arbitrage

import (
	"context"
	"latencysim/internal/database"
	"latencysim/internal/model"
	"latencysim/internal/tape"
	"log/slog"
	"maps"
	"slices"
)

// Consolidator merges per-exchange ticks into a consolidated tape and
// records arbitrage hits as they appear.
type Consolidator struct {
	logger       *slog.Logger
	repo         database.Repository
	rule         tape.ColumnRule
	maxQty       float64
	latestPrices map[string]model.PriceTick
	snapshots    []model.QuoteSnapshot
	hits         []model.Opportunity
}

// NewConsolidator creates a new Consolidator. repo may be nil to keep
// everything in memory only.
func NewConsolidator(logger *slog.Logger, repo database.Repository, maxQty float64) *Consolidator {
	return &Consolidator{
		logger:       logger,
		repo:         repo,
		rule:         tape.DefaultColumnRule(),
		maxQty:       maxQty,
		latestPrices: make(map[string]model.PriceTick),
	}
}

// ProcessTick folds a tick into the tape and checks the new snapshot for an
// arbitrage opportunity.
func (e *Consolidator) ProcessTick(ctx context.Context, tick model.PriceTick) {
	if e.repo != nil {
		if err := e.repo.LogPriceTick(ctx, tick); err != nil {
			e.logger.Error("Failed to log price tick", "error", err)
		}
	}

	// Update the latest price for this exchange
	e.latestPrices[tick.Exchange] = tick

	snap := e.snapshot(tick.Epoch)
	e.snapshots = append(e.snapshots, snap)
	if e.repo != nil {
		if err := e.repo.LogSnapshot(ctx, snap); err != nil {
			e.logger.Error("Failed to log snapshot", "error", err)
		}
	}

	cols, err := e.rule.Resolve(slices.Sorted(maps.Keys(snap.Values)))
	if err != nil {
		e.logger.Error("Failed to resolve snapshot columns", "error", err)
		return
	}
	hit, ok := Detect(snap, cols, e.maxQty)
	if !ok {
		return
	}

	e.logger.Info("Arbitrage opportunity detected",
		"epoch", hit.Epoch,
		"tradedQty", hit.TradedQty,
		"exchange", tick.Exchange,
	)
	e.hits = append(e.hits, hit)
	if e.repo != nil {
		if err := e.repo.LogHit(ctx, hit); err != nil {
			e.logger.Error("Failed to log hit", "error", err)
		}
	}
}

// Run consumes ticks until the channel closes or ctx is done.
func (e *Consolidator) Run(ctx context.Context, ticks <-chan model.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			e.ProcessTick(ctx, tick)
		}
	}
}

// Tape returns a copy of the consolidated tape recorded so far.
func (e *Consolidator) Tape() model.Tape {
	snaps := slices.Clone(e.snapshots)
	return model.Tape{Columns: tape.Schema(snaps), Snapshots: snaps}
}

// Hits returns a copy of the hits detected so far.
func (e *Consolidator) Hits() []model.Opportunity {
	return slices.Clone(e.hits)
}

// snapshot builds a consolidated row from the latest quote of every exchange.
func (e *Consolidator) snapshot(epoch int64) model.QuoteSnapshot {
	values := make(map[string]float64, 4*len(e.latestPrices))
	for venue, t := range e.latestPrices {
		values[BidColumn(venue)] = t.Bid
		values[AskColumn(venue)] = t.Ask
		if t.BidSize > 0 {
			values[BidVolColumn(venue)] = t.BidSize
		}
		if t.AskSize > 0 {
			values[AskVolColumn(venue)] = t.AskSize
		}
	}
	return model.QuoteSnapshot{Epoch: epoch, Values: values}
}
