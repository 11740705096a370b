package report

import (
	"bytes"
	"latencysim/internal/model"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintSweep(t *testing.T) {
	run := model.SweepRun{
		ID:            uuid.New(),
		Opportunities: 4,
		Snapshots:     120,
		Baseline:      20,
		Points: []model.SweepPoint{
			{LatencyMicros: 0, RealizedProfit: 20, Matched: 4, Retention: 1},
			{LatencyMicros: 250, RealizedProfit: 12, Matched: 4, Retention: 0.6},
			{LatencyMicros: 500, RealizedProfit: 4, Matched: 3, Retention: 0.2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintSweep(&buf, run))

	out := buf.String()
	assert.Contains(t, out, run.ID.String())
	assert.Contains(t, out, "12.0000")
	assert.Contains(t, out, "60.0%")
	assert.Contains(t, out, "3/4")
	assert.Contains(t, out, "gone by 500 us")
}

func TestPrintSweep_NoBaselineOrPoints(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSweep(&buf, model.SweepRun{}))
	assert.Contains(t, buf.String(), "no latency values swept")

	buf.Reset()
	require.NoError(t, PrintSweep(&buf, model.SweepRun{Points: []model.SweepPoint{{LatencyMicros: 10}}}))
	assert.Contains(t, buf.String(), "No profit at zero latency")
}

func TestHalfLife(t *testing.T) {
	_, ok := HalfLife(model.SweepRun{Baseline: 10, Points: []model.SweepPoint{{LatencyMicros: 10, Retention: 0.9}}})
	assert.False(t, ok)

	l, ok := HalfLife(model.SweepRun{Baseline: 10, Points: []model.SweepPoint{
		{LatencyMicros: 10, Retention: 0.9},
		{LatencyMicros: 20, Retention: 0.4},
	}})
	assert.True(t, ok)
	assert.Equal(t, int64(20), l)

	_, ok = HalfLife(model.SweepRun{Points: []model.SweepPoint{{LatencyMicros: 10}}})
	assert.False(t, ok)
}
