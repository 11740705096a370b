// Package latency estimates how much detected arbitrage profit survives when
// execution happens a fixed delay after detection.
package latency

import (
	"errors"
	"fmt"
	"latencysim/internal/model"
	"latencysim/internal/tape"
	"log/slog"
	"math"
)

var (
	// ErrSchema reports a required column or field that is missing or invalid.
	ErrSchema = errors.New("latency: schema error")
	// ErrNegativeLatency is returned for latency < 0.
	ErrNegativeLatency = errors.New("latency: negative latency")
)

// Realization is the outcome of a single opportunity at a given latency.
type Realization struct {
	Opportunity    model.Opportunity
	ExecutionEpoch int64
	Matched        bool  // a quote at or before ExecutionEpoch exists
	QuoteEpoch     int64 // epoch of the matched quote
	Priced         bool  // the matched quote had at least one bid and one ask
	MaxBid         float64
	MinAsk         float64
	ProfitUnit     float64
	Profit         float64
}

// Estimator computes realized profit for a latency against a quote tape.
// It holds no per-call state and is safe for concurrent use.
type Estimator struct {
	logger *slog.Logger
	rule   tape.ColumnRule
}

// NewEstimator creates an Estimator resolving tape columns with rule.
func NewEstimator(logger *slog.Logger, rule tape.ColumnRule) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{logger: logger, rule: rule}
}

// Estimate returns the total realized profit using the default column rule.
func Estimate(opps []model.Opportunity, quotes model.Tape, latency int64) (float64, error) {
	return NewEstimator(nil, tape.DefaultColumnRule()).Estimate(opps, quotes, latency)
}

// Estimate returns the total realized profit when every opportunity executes
// latency time units after detection.
func (e *Estimator) Estimate(opps []model.Opportunity, quotes model.Tape, latency int64) (float64, error) {
	rows, err := e.Realize(opps, quotes, latency)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, r := range rows {
		total += r.Profit
	}
	return total, nil
}

// Realize returns one Realization per opportunity, in input order. Neither
// input is modified.
func (e *Estimator) Realize(opps []model.Opportunity, quotes model.Tape, latency int64) ([]Realization, error) {
	if len(opps) == 0 || quotes.Empty() {
		return nil, nil
	}
	if latency < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLatency, latency)
	}
	for i, o := range opps {
		if math.IsNaN(o.TradedQty) || o.TradedQty < 0 {
			return nil, fmt.Errorf("%w: opportunity %d has invalid traded quantity %v", ErrSchema, i, o.TradedQty)
		}
		if o.Epoch > math.MaxInt64-latency {
			return nil, fmt.Errorf("%w: opportunity %d execution epoch overflows at latency %d", ErrSchema, i, latency)
		}
	}

	sorted := tape.Sorted(quotes)
	schema := sorted.Columns
	if len(schema) == 0 {
		schema = tape.Schema(sorted.Snapshots)
	}
	cols, err := e.rule.Resolve(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if len(cols.Bids) == 0 {
		return nil, fmt.Errorf("%w: no bid price columns", ErrSchema)
	}
	if len(cols.Asks) == 0 {
		return nil, fmt.Errorf("%w: no ask price columns", ErrSchema)
	}

	keys := tape.Epochs(sorted)
	out := make([]Realization, len(opps))
	matched := 0
	var total float64
	for i, o := range opps {
		r := Realization{Opportunity: o, ExecutionEpoch: o.Epoch + latency}
		idx := tape.AsOf(keys, r.ExecutionEpoch)
		if idx >= 0 {
			snap := sorted.Snapshots[idx]
			r.Matched = true
			r.QuoteEpoch = snap.Epoch
			realize(&r, snap, cols)
			matched++
		}
		total += r.Profit
		out[i] = r
	}

	e.logger.Debug("Latency estimate complete",
		"latency", latency,
		"opportunities", len(opps),
		"snapshots", len(sorted.Snapshots),
		"matched", matched,
		"realized", total,
	)
	return out, nil
}

func realize(r *Realization, snap model.QuoteSnapshot, cols tape.ColumnSet) {
	bid, okBid := reduce(snap, cols.Bids, math.Max)
	ask, okAsk := reduce(snap, cols.Asks, math.Min)
	if !okBid || !okAsk {
		return
	}
	r.Priced = true
	r.MaxBid = bid
	r.MinAsk = ask
	r.ProfitUnit = max(0, bid-ask)
	r.Profit = r.ProfitUnit * r.Opportunity.TradedQty
}

// reduce folds the present, non-NaN values of columns with pick.
func reduce(snap model.QuoteSnapshot, columns []string, pick func(a, b float64) float64) (float64, bool) {
	var (
		acc   float64
		found bool
	)
	for _, c := range columns {
		v, ok := snap.Value(c)
		if !ok || math.IsNaN(v) {
			continue
		}
		if !found {
			acc, found = v, true
			continue
		}
		acc = pick(acc, v)
	}
	return acc, found
}
