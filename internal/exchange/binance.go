package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"latencysim/internal/model"
	"log/slog"
	"strconv"
	"strings"
)

const binanceStreamURL = "wss://stream.binance.com:9443/ws"

// BinanceClient implements the ExchangeClient interface for Binance.
type BinanceClient struct {
	logger *slog.Logger
	symbol string
	url    string
}

// NewBinanceClient creates a new BinanceClient. An empty symbol is derived
// from the pair passed to StartStream.
func NewBinanceClient(logger *slog.Logger, symbol, url string) *BinanceClient {
	if url == "" {
		url = binanceStreamURL
	}
	return &BinanceClient{logger: logger, symbol: strings.ToLower(symbol), url: url}
}

func (b *BinanceClient) GetName() string {
	return "binance"
}

// StartStream streams best bid/ask updates from the Binance book ticker.
func (b *BinanceClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error {
	symbol := b.symbol
	if symbol == "" {
		symbol = strings.ToLower(strings.ReplaceAll(pair, "/", ""))
	}
	return stream{
		name: "BinanceClient",
		url:  fmt.Sprintf("%s/%s@bookTicker", b.url, symbol),
		parse: func(msg []byte, epoch int64) (model.PriceTick, bool, error) {
			return parseBinanceBookTicker(msg, pair, epoch)
		},
	}.run(ctx, b.logger, priceChan)
}

type binanceBookTicker struct {
	Symbol  string `json:"s"`
	Bid     string `json:"b"`
	BidSize string `json:"B"`
	Ask     string `json:"a"`
	AskSize string `json:"A"`
}

func parseBinanceBookTicker(msg []byte, pair string, epoch int64) (model.PriceTick, bool, error) {
	var t binanceBookTicker
	if err := json.Unmarshal(msg, &t); err != nil {
		return model.PriceTick{}, false, err
	}
	if t.Bid == "" || t.Ask == "" {
		return model.PriceTick{}, false, nil
	}

	tick := model.PriceTick{Exchange: "binance", Pair: pair, Epoch: epoch}
	var err error
	if tick.Bid, err = strconv.ParseFloat(t.Bid, 64); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("bid price: %w", err)
	}
	if tick.Ask, err = strconv.ParseFloat(t.Ask, 64); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("ask price: %w", err)
	}
	if tick.BidSize, err = parseOptional(t.BidSize); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("bid size: %w", err)
	}
	if tick.AskSize, err = parseOptional(t.AskSize); err != nil {
		return model.PriceTick{}, false, fmt.Errorf("ask size: %w", err)
	}
	return tick, true, nil
}

func parseOptional(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
