package database

import (
	"context"
	"latencysim/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	Migrate(ctx context.Context) error
	LogPriceTick(ctx context.Context, tick model.PriceTick) error
	LogSnapshot(ctx context.Context, snap model.QuoteSnapshot) error
	LogHit(ctx context.Context, hit model.Opportunity) error
	SaveSweep(ctx context.Context, run model.SweepRun) error
}

// Source loads the inputs of a latency sweep.
type Source interface {
	LoadOpportunities(ctx context.Context, from, to int64) ([]model.Opportunity, error)
	LoadTape(ctx context.Context, from, to int64) (model.Tape, error)
}
