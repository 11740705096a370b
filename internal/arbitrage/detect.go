package arbitrage

import (
	"latencysim/internal/model"
	"latencysim/internal/tape"
	"math"
	"strings"
)

// Column names written by the Consolidator for a venue.
func BidColumn(venue string) string    { return tape.DefaultBidMarker + "_" + venue }
func AskColumn(venue string) string    { return tape.DefaultAskMarker + "_" + venue }
func BidVolColumn(venue string) string { return "vol_bid_0_" + venue }
func AskVolColumn(venue string) string { return "vol_ask_0_" + venue }

// Role tokens that mark the side of a quote column.
const (
	bidRole = "bid"
	askRole = "ask"
)

// splitRole cuts col at its first role token. ok is false when col does not
// carry the token.
func splitRole(col, role string) (before, after string, ok bool) {
	i := strings.Index(strings.ToLower(col), role)
	if i < 0 {
		return "", "", false
	}
	return col[:i], col[i+len(role):], true
}

// sameVenue reports whether a bid and an ask column differ only by their
// role token, as in price_bid_0_x / price_ask_0_x or best_bid_x / best_ask_x.
func sameVenue(bidCol, askCol string) bool {
	bb, ba, okBid := splitRole(bidCol, bidRole)
	ab, aa, okAsk := splitRole(askCol, askRole)
	if !okBid || !okAsk {
		return bidCol == askCol
	}
	return bb == ab && ba == aa
}

// sizeOf returns the size quoted next to priceCol: the volume column sharing
// its role token and venue suffix, e.g. vol_bid_0_x for price_bid_0_x.
func sizeOf(snap model.QuoteSnapshot, priceCol, role string, volumes []string) (float64, bool) {
	_, suffix, ok := splitRole(priceCol, role)
	if !ok {
		return 0, false
	}
	for _, v := range volumes {
		if v == priceCol {
			continue
		}
		if _, vs, ok := splitRole(v, role); ok && vs == suffix {
			size, ok := snap.Value(v)
			if !ok || math.IsNaN(size) {
				return 0, false
			}
			return size, true
		}
	}
	return 0, false
}

// Detect reports a hit when the best bid and best ask sit on different venues
// and the bid is above the ask. The traded quantity is the smaller of the two
// top-of-book sizes, capped by maxQty when maxQty > 0. Without sizes the cap
// alone is used; with neither there is no hit.
func Detect(snap model.QuoteSnapshot, cols tape.ColumnSet, maxQty float64) (model.Opportunity, bool) {
	bidCol, bid, ok := best(snap, cols.Bids, func(v, cur float64) bool { return v > cur })
	if !ok {
		return model.Opportunity{}, false
	}
	askCol, ask, ok := best(snap, cols.Asks, func(v, cur float64) bool { return v < cur })
	if !ok || bid <= ask {
		return model.Opportunity{}, false
	}
	if sameVenue(bidCol, askCol) {
		return model.Opportunity{}, false
	}

	qty := math.Inf(1)
	if v, ok := sizeOf(snap, bidCol, bidRole, cols.Volumes); ok {
		qty = v
	}
	if v, ok := sizeOf(snap, askCol, askRole, cols.Volumes); ok {
		qty = min(qty, v)
	}
	if maxQty > 0 {
		qty = min(qty, maxQty)
	}
	if math.IsInf(qty, 1) || qty <= 0 {
		return model.Opportunity{}, false
	}
	return model.Opportunity{Epoch: snap.Epoch, TradedQty: qty}, true
}

// DetectHits scans a whole tape in time order.
func DetectHits(t model.Tape, rule tape.ColumnRule, maxQty float64) ([]model.Opportunity, error) {
	sorted := tape.Sorted(t)
	schema := sorted.Columns
	if len(schema) == 0 {
		schema = tape.Schema(sorted.Snapshots)
	}
	cols, err := rule.Resolve(schema)
	if err != nil {
		return nil, err
	}

	var hits []model.Opportunity
	for _, snap := range sorted.Snapshots {
		if hit, ok := Detect(snap, cols, maxQty); ok {
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

func best(snap model.QuoteSnapshot, columns []string, better func(v, cur float64) bool) (string, float64, bool) {
	var (
		col   string
		val   float64
		found bool
	)
	for _, c := range columns {
		v, ok := snap.Value(c)
		if !ok || math.IsNaN(v) {
			continue
		}
		if !found || better(v, val) {
			col, val, found = c, v, true
		}
	}
	return col, val, found
}
