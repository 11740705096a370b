package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"latencysim/internal/model"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

const krakenStreamURL = "wss://ws.kraken.com"

// KrakenClient implements the ExchangeClient interface for Kraken.
type KrakenClient struct {
	logger *slog.Logger
	symbol string
	url    string
}

// NewKrakenClient creates a new KrakenClient. An empty symbol is derived
// from the pair passed to StartStream.
func NewKrakenClient(logger *slog.Logger, symbol, url string) *KrakenClient {
	if url == "" {
		url = krakenStreamURL
	}
	return &KrakenClient{logger: logger, symbol: symbol, url: url}
}

func (k *KrakenClient) GetName() string {
	return "kraken"
}

// StartStream subscribes to the Kraken ticker channel for pair.
func (k *KrakenClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error {
	symbol := k.symbol
	if symbol == "" {
		symbol = krakenPair(pair)
	}
	return stream{
		name: "KrakenClient",
		url:  k.url,
		subscribe: func(c *websocket.Conn) error {
			return c.WriteJSON(map[string]any{
				"event":        "subscribe",
				"pair":         []string{symbol},
				"subscription": map[string]string{"name": "ticker"},
			})
		},
		parse: func(msg []byte, epoch int64) (model.PriceTick, bool, error) {
			return parseKrakenTicker(msg, pair, epoch)
		},
	}.run(ctx, k.logger, priceChan)
}

// krakenPair maps "BTC/EUR" to Kraken's "XBT/EUR".
func krakenPair(pair string) string {
	base, quote, ok := strings.Cut(strings.ToUpper(pair), "/")
	if !ok {
		return pair
	}
	if base == "BTC" {
		base = "XBT"
	}
	return base + "/" + quote
}

// Levels mix types: price and lot volume are strings, whole lot volume is a number.
type krakenTicker struct {
	Ask []json.RawMessage `json:"a"` // price, whole lot volume, lot volume
	Bid []json.RawMessage `json:"b"`
}

// levelFloat parses a string-encoded decimal from a ticker level.
func levelFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

// parseKrakenTicker handles [channelID, {a, b, ...}, "ticker", pair] frames.
// Event objects (heartbeat, subscriptionStatus) are skipped.
func parseKrakenTicker(msg []byte, pair string, epoch int64) (model.PriceTick, bool, error) {
	if len(msg) == 0 || msg[0] != '[' {
		return model.PriceTick{}, false, nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil {
		return model.PriceTick{}, false, err
	}
	if len(frame) < 4 {
		return model.PriceTick{}, false, nil
	}
	var channel string
	if err := json.Unmarshal(frame[2], &channel); err != nil || channel != "ticker" {
		return model.PriceTick{}, false, nil
	}

	var t krakenTicker
	if err := json.Unmarshal(frame[1], &t); err != nil {
		return model.PriceTick{}, false, err
	}
	if len(t.Bid) < 3 || len(t.Ask) < 3 {
		return model.PriceTick{}, false, fmt.Errorf("short ticker levels")
	}

	tick := model.PriceTick{Exchange: "kraken", Pair: pair, Epoch: epoch}
	var err error
	if tick.Bid, err = levelFloat(t.Bid[0]); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("bid price: %w", err)
	}
	if tick.Ask, err = levelFloat(t.Ask[0]); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("ask price: %w", err)
	}
	if tick.BidSize, err = levelFloat(t.Bid[2]); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("bid size: %w", err)
	}
	if tick.AskSize, err = levelFloat(t.Ask[2]); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("ask size: %w", err)
	}
	return tick, true, nil
}
