// Package report prints latency sweep results.
package report

import (
	"fmt"
	"io"
	"latencysim/internal/model"

	"github.com/olekukonko/tablewriter"
)

// PrintSweep writes one table row per latency followed by a short summary.
func PrintSweep(w io.Writer, run model.SweepRun) error {
	fmt.Fprintf(w, "\nLatency sweep %s: %d opportunities, %d snapshots, %.4f at zero latency\n",
		run.ID, run.Opportunities, run.Snapshots, run.Baseline)

	if len(run.Points) == 0 {
		fmt.Fprintln(w, "  no latency values swept")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Latency (us)", "Realized", "Retained", "Matched")
	for _, p := range run.Points {
		if err := table.Append(
			fmt.Sprintf("%d", p.LatencyMicros),
			fmt.Sprintf("%.4f", p.RealizedProfit),
			fmt.Sprintf("%.1f%%", p.Retention*100),
			fmt.Sprintf("%d/%d", p.Matched, run.Opportunities),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	half, ok := HalfLife(run)
	switch {
	case run.Baseline <= 0:
		fmt.Fprintln(w, "  No profit at zero latency")
	case ok:
		fmt.Fprintf(w, "  Half of the zero-latency profit is gone by %d us\n", half)
	default:
		fmt.Fprintln(w, "  More than half of the zero-latency profit survives every swept latency")
	}
	return nil
}

// HalfLife returns the first swept latency at which retention drops below
// 50%. Points are taken in the order given.
func HalfLife(run model.SweepRun) (int64, bool) {
	if run.Baseline <= 0 {
		return 0, false
	}
	for _, p := range run.Points {
		if p.Retention < 0.5 {
			return p.LatencyMicros, true
		}
	}
	return 0, false
}

