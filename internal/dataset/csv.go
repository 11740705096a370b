// Package dataset loads arbitrage hits and consolidated tapes from CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"latencysim/internal/model"
	"os"
	"strconv"
	"strings"
)

const (
	EpochColumn     = "epoch"
	TradedQtyColumn = "Traded_Qty"
)

var (
	// ErrSchema reports a missing column or an unparseable value.
	ErrSchema = errors.New("dataset: schema error")
	// ErrOrdering reports a time key that cannot be ordered.
	ErrOrdering = errors.New("dataset: non-orderable time key")
)

// LoadOpportunities reads a hits table. Columns other than epoch and
// Traded_Qty are ignored.
func LoadOpportunities(r io.Reader) ([]model.Opportunity, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	epochIdx, err := columnIndex(header, EpochColumn)
	if err != nil {
		return nil, err
	}
	qtyIdx, err := columnIndex(header, TradedQtyColumn)
	if err != nil {
		return nil, err
	}

	opps := make([]model.Opportunity, 0, len(rows))
	for i, rec := range rows {
		line := i + 2
		epoch, err := parseEpoch(rec[epochIdx], line)
		if err != nil {
			return nil, err
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(rec[qtyIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s %q", ErrSchema, line, TradedQtyColumn, rec[qtyIdx])
		}
		opps = append(opps, model.Opportunity{Epoch: epoch, TradedQty: qty})
	}
	return opps, nil
}

// LoadTape reads a consolidated tape. Every column other than epoch is a
// quote column; an empty cell is an absent value.
func LoadTape(r io.Reader) (model.Tape, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return model.Tape{}, err
	}
	epochIdx, err := columnIndex(header, EpochColumn)
	if err != nil {
		return model.Tape{}, err
	}

	t := model.Tape{Snapshots: make([]model.QuoteSnapshot, 0, len(rows))}
	for i, h := range header {
		if i != epochIdx {
			t.Columns = append(t.Columns, h)
		}
	}

	for i, rec := range rows {
		line := i + 2
		epoch, err := parseEpoch(rec[epochIdx], line)
		if err != nil {
			return model.Tape{}, err
		}
		snap := model.QuoteSnapshot{Epoch: epoch, Values: make(map[string]float64, len(header)-1)}
		for j, cell := range rec {
			cell = strings.TrimSpace(cell)
			if j == epochIdx || cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return model.Tape{}, fmt.Errorf("%w: line %d: column %s value %q", ErrSchema, line, header[j], cell)
			}
			snap.Values[header[j]] = v
		}
		t.Snapshots = append(t.Snapshots, snap)
	}
	return t, nil
}

// LoadOpportunitiesFile opens path and calls LoadOpportunities.
func LoadOpportunitiesFile(path string) ([]model.Opportunity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	opps, err := LoadOpportunities(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return opps, nil
}

// LoadTapeFile opens path and calls LoadTape.
func LoadTapeFile(path string) (model.Tape, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Tape{}, err
	}
	defer f.Close()

	t, err := LoadTape(f)
	if err != nil {
		return model.Tape{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: missing header", ErrSchema)
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, records[1:], nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: missing column %q", ErrSchema, name)
}

// parseEpoch accepts integer text; float text is accepted only when integral.
func parseEpoch(s string, line int) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("%w: line %d: epoch %q", ErrOrdering, line, s)
	}
	return int64(f), nil
}
