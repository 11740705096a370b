package database

import (
	"context"
	"fmt"
	"latencysim/internal/model"
	"latencysim/internal/tape"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS price_ticks (
	id BIGSERIAL PRIMARY KEY,
	epoch BIGINT NOT NULL,
	exchange VARCHAR(50) NOT NULL,
	trading_pair VARCHAR(20) NOT NULL,
	bid NUMERIC(20, 8) NOT NULL,
	bid_size NUMERIC(20, 8) NOT NULL,
	ask NUMERIC(20, 8) NOT NULL,
	ask_size NUMERIC(20, 8) NOT NULL
);
CREATE TABLE IF NOT EXISTS tape_snapshots (
	id BIGSERIAL PRIMARY KEY,
	epoch BIGINT NOT NULL,
	quote_values JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tape_snapshots_epoch ON tape_snapshots(epoch);
CREATE TABLE IF NOT EXISTS arbitrage_hits (
	id BIGSERIAL PRIMARY KEY,
	epoch BIGINT NOT NULL,
	traded_qty DOUBLE PRECISION NOT NULL CHECK (traded_qty >= 0)
);
CREATE INDEX IF NOT EXISTS idx_arbitrage_hits_epoch ON arbitrage_hits(epoch);
CREATE TABLE IF NOT EXISTS sweep_runs (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	opportunities INTEGER NOT NULL,
	snapshots INTEGER NOT NULL,
	baseline DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS sweep_points (
	run_id UUID NOT NULL REFERENCES sweep_runs(id) ON DELETE CASCADE,
	latency_micros BIGINT NOT NULL,
	realized_profit DOUBLE PRECISION NOT NULL,
	matched INTEGER NOT NULL,
	retention DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, latency_micros)
);`

// PostgresRepository implements Repository and Source on a pgx pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

// Migrate creates the tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LogPriceTick(ctx context.Context, tick model.PriceTick) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO price_ticks (epoch, exchange, trading_pair, bid, bid_size, ask, ask_size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tick.Epoch, tick.Exchange, tick.Pair, tick.Bid, tick.BidSize, tick.Ask, tick.AskSize,
	)
	if err != nil {
		return fmt.Errorf("log price tick: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LogSnapshot(ctx context.Context, snap model.QuoteSnapshot) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO tape_snapshots (epoch, quote_values) VALUES ($1, $2)`,
		snap.Epoch, snap.Values,
	)
	if err != nil {
		return fmt.Errorf("log snapshot: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LogHit(ctx context.Context, hit model.Opportunity) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO arbitrage_hits (epoch, traded_qty) VALUES ($1, $2)`,
		hit.Epoch, hit.TradedQty,
	)
	if err != nil {
		return fmt.Errorf("log hit: %w", err)
	}
	return nil
}

// SaveSweep stores a run and its points in one transaction.
func (r *PostgresRepository) SaveSweep(ctx context.Context, run model.SweepRun) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save sweep: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO sweep_runs (id, started_at, opportunities, snapshots, baseline) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.StartedAt, run.Opportunities, run.Snapshots, run.Baseline,
	); err != nil {
		return fmt.Errorf("save sweep: insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range run.Points {
		batch.Queue(
			`INSERT INTO sweep_points (run_id, latency_micros, realized_profit, matched, retention)
			 VALUES ($1, $2, $3, $4, $5)`,
			run.ID, p.LatencyMicros, p.RealizedProfit, p.Matched, p.Retention,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save sweep: insert points: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadOpportunities returns hits with from <= epoch <= to, ordered by
// detection. A zero bound is open.
func (r *PostgresRepository) LoadOpportunities(ctx context.Context, from, to int64) ([]model.Opportunity, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT epoch, traded_qty FROM arbitrage_hits
		 WHERE ($1::bigint = 0 OR epoch >= $1::bigint) AND ($2::bigint = 0 OR epoch <= $2::bigint)
		 ORDER BY epoch, id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("load opportunities: %w", err)
	}
	opps, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Opportunity])
	if err != nil {
		return nil, fmt.Errorf("load opportunities: %w", err)
	}
	return opps, nil
}

// LoadTape returns snapshots with from <= epoch <= to. The schema is the
// union of the stored columns.
func (r *PostgresRepository) LoadTape(ctx context.Context, from, to int64) (model.Tape, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT epoch, quote_values FROM tape_snapshots
		 WHERE ($1::bigint = 0 OR epoch >= $1::bigint) AND ($2::bigint = 0 OR epoch <= $2::bigint)
		 ORDER BY epoch, id`,
		from, to,
	)
	if err != nil {
		return model.Tape{}, fmt.Errorf("load tape: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.QuoteSnapshot])
	if err != nil {
		return model.Tape{}, fmt.Errorf("load tape: %w", err)
	}
	return model.Tape{Columns: tape.Schema(snaps), Snapshots: snaps}, nil
}
