package exchange

import (
	"fmt"
	"latencysim/internal/config"
	"log/slog"
)

// NewClient creates a new exchange client based on the given name and configuration.
func NewClient(name string, logger *slog.Logger, cfg config.ExchangeConfig) (ExchangeClient, error) {
	switch name {
	case "kraken":
		return NewKrakenClient(logger, cfg.Symbol, cfg.WSURL), nil
	case "binance":
		return NewBinanceClient(logger, cfg.Symbol, cfg.WSURL), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
