package tape

import (
	"fmt"
	"strings"
)

const (
	DefaultBidMarker    = "price_bid_0"
	DefaultAskMarker    = "price_ask_0"
	DefaultVolumeMarker = "vol_"
)

// ColumnRule maps the logical column roles of a tape to concrete column names.
// An explicit list overrides marker matching for its role.
type ColumnRule struct {
	BidMarker    string   `mapstructure:"bid_marker"`
	AskMarker    string   `mapstructure:"ask_marker"`
	VolumeMarker string   `mapstructure:"volume_marker"`
	Bids         []string `mapstructure:"bids"`
	Asks         []string `mapstructure:"asks"`
	Volumes      []string `mapstructure:"volumes"`
}

// ColumnSet is a resolved ColumnRule.
type ColumnSet struct {
	Bids    []string
	Asks    []string
	Volumes []string
}

// DefaultColumnRule matches columns by the standard substring markers.
func DefaultColumnRule() ColumnRule {
	return ColumnRule{
		BidMarker:    DefaultBidMarker,
		AskMarker:    DefaultAskMarker,
		VolumeMarker: DefaultVolumeMarker,
	}
}

// Resolve applies the rule to a tape schema. Matched columns keep schema order.
// Empty sets are not an error here; callers decide which roles are required.
func (r ColumnRule) Resolve(columns []string) (ColumnSet, error) {
	var (
		set ColumnSet
		err error
	)
	if set.Bids, err = resolveRole("bid", r.Bids, r.BidMarker, columns); err != nil {
		return ColumnSet{}, err
	}
	if set.Asks, err = resolveRole("ask", r.Asks, r.AskMarker, columns); err != nil {
		return ColumnSet{}, err
	}
	if set.Volumes, err = resolveRole("volume", r.Volumes, r.VolumeMarker, columns); err != nil {
		return ColumnSet{}, err
	}
	return set, nil
}

func resolveRole(role string, explicit []string, marker string, columns []string) ([]string, error) {
	if len(explicit) > 0 {
		known := make(map[string]struct{}, len(columns))
		for _, c := range columns {
			known[c] = struct{}{}
		}
		out := make([]string, 0, len(explicit))
		for _, c := range explicit {
			if _, ok := known[c]; !ok {
				return nil, fmt.Errorf("%s column %q not in tape schema", role, c)
			}
			out = append(out, c)
		}
		return out, nil
	}

	if marker == "" {
		return nil, nil
	}
	var out []string
	for _, c := range columns {
		if strings.Contains(c, marker) {
			out = append(out, c)
		}
	}
	return out, nil
}
