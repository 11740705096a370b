// Package tape holds the consolidated quote tape helpers: column role
// resolution, stable time ordering and the as-of (last value at or before)
// lookup.
package tape

import (
	"cmp"
	"latencysim/internal/model"
	"slices"
	"sort"
)

// AsOf returns the index of the last key that is <= at, or -1 when every key
// is after at. keys must be sorted ascending.
func AsOf[K cmp.Ordered](keys []K, at K) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] > at }) - 1
}

// Sorted returns a copy of t ordered by epoch. Rows sharing an epoch keep
// their input order, so an as-of lookup resolves ties to the latest row.
func Sorted(t model.Tape) model.Tape {
	rows := slices.Clone(t.Snapshots)
	slices.SortStableFunc(rows, func(a, b model.QuoteSnapshot) int {
		return cmp.Compare(a.Epoch, b.Epoch)
	})
	return model.Tape{
		Columns:   slices.Clone(t.Columns),
		Snapshots: rows,
	}
}

// Epochs returns the time keys of t in row order.
func Epochs(t model.Tape) []int64 {
	keys := make([]int64, len(t.Snapshots))
	for i, s := range t.Snapshots {
		keys[i] = s.Epoch
	}
	return keys
}

// Schema returns the union of columns present in the rows, in first-seen
// order. Used when a tape is built without a declared schema.
func Schema(rows []model.QuoteSnapshot) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rows {
		names := make([]string, 0, len(r.Values))
		for c := range r.Values {
			if _, ok := seen[c]; !ok {
				names = append(names, c)
			}
		}
		slices.Sort(names)
		for _, c := range names {
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	return cols
}
