package model

import (
	"time"

	"github.com/google/uuid"
)

// PriceTick represents a single top-of-book update from an exchange.
type PriceTick struct {
	Exchange string
	Pair     string
	Epoch    int64 // receive time, microseconds since the Unix epoch
	Bid      float64
	BidSize  float64
	Ask      float64
	AskSize  float64
}

// Opportunity is one detected arbitrage hit.
type Opportunity struct {
	Epoch     int64   `db:"epoch"`
	TradedQty float64 `db:"traded_qty"`
}

// QuoteSnapshot is one row of the consolidated tape. A column missing from
// Values is absent at that instant, not zero.
type QuoteSnapshot struct {
	Epoch  int64              `db:"epoch"`
	Values map[string]float64 `db:"quote_values"`
}

// Value returns the column value and whether it is present.
func (q QuoteSnapshot) Value(column string) (float64, bool) {
	v, ok := q.Values[column]
	return v, ok
}

// Tape is the consolidated quote table. Columns is its schema.
type Tape struct {
	Columns   []string
	Snapshots []QuoteSnapshot
}

// Empty reports whether the tape has no rows.
func (t Tape) Empty() bool {
	return len(t.Snapshots) == 0
}

// SweepPoint is the realized profit for one latency value.
type SweepPoint struct {
	LatencyMicros  int64   `db:"latency_micros"`
	RealizedProfit float64 `db:"realized_profit"`
	Matched        int     `db:"matched"`
	Retention      float64 `db:"retention"` // realized / zero-latency realized, 0 when the baseline is 0
}

// SweepRun groups the points of one latency sweep.
type SweepRun struct {
	ID            uuid.UUID    `db:"id"`
	StartedAt     time.Time    `db:"started_at"`
	Opportunities int          `db:"opportunities"`
	Snapshots     int          `db:"snapshots"`
	Baseline      float64      `db:"baseline"` // realized profit at zero latency
	Points        []SweepPoint `db:"-"`
}
