package latency

import (
	"context"
	"fmt"
	"latencysim/internal/model"

	"golang.org/x/sync/errgroup"
)

// MaxRangePoints bounds the number of latencies Range will build.
const MaxRangePoints = 100_000

// Range returns start, start+step, ... up to and including stop.
func Range(start, stop, step int64) ([]int64, error) {
	if step <= 0 {
		return nil, fmt.Errorf("latency range: step must be positive, got %d", step)
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: range start %d", ErrNegativeLatency, start)
	}
	if stop < start {
		return nil, fmt.Errorf("latency range: stop %d before start %d", stop, start)
	}
	// stop-start cannot overflow: both are non-negative
	if n := (stop-start)/step + 1; n > MaxRangePoints {
		return nil, fmt.Errorf("latency range: %d points exceed the limit of %d", n, MaxRangePoints)
	}

	out := make([]int64, 0, (stop-start)/step+1)
	for l := start; ; l += step {
		out = append(out, l)
		if l > stop-step {
			break
		}
	}
	return out, nil
}

// Sweep runs one independent estimate per latency, at most workers at a time.
// Points keep the order of latencies and their Retention is relative to the
// zero-latency total. The run's ID and StartedAt are left to the caller.
func (e *Estimator) Sweep(ctx context.Context, opps []model.Opportunity, quotes model.Tape, latencies []int64, workers int) (model.SweepRun, error) {
	baseline, err := e.Estimate(opps, quotes, 0)
	if err != nil {
		return model.SweepRun{}, fmt.Errorf("baseline estimate: %w", err)
	}

	points := make([]model.SweepPoint, len(latencies))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, l := range latencies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := e.Realize(opps, quotes, l)
			if err != nil {
				return fmt.Errorf("latency %d: %w", l, err)
			}
			p := model.SweepPoint{LatencyMicros: l}
			for _, r := range rows {
				p.RealizedProfit += r.Profit
				if r.Matched {
					p.Matched++
				}
			}
			if baseline > 0 {
				p.Retention = p.RealizedProfit / baseline
			}
			points[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.SweepRun{}, err
	}

	e.logger.Info("Latency sweep complete", "points", len(points), "baseline", baseline)
	return model.SweepRun{
		Opportunities: len(opps),
		Snapshots:     len(quotes.Snapshots),
		Baseline:      baseline,
		Points:        points,
	}, nil
}
