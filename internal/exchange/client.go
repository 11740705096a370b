package exchange

import (
	"context"
	"latencysim/internal/model"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 16 * time.Second
)

// ExchangeClient defines the standard interface for all exchange clients.
type ExchangeClient interface {
	GetName() string
	StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error
}

// stream describes one venue's websocket feed.
type stream struct {
	name      string
	url       string
	subscribe func(c *websocket.Conn) error
	// parse returns ok=false for messages that carry no quote.
	parse func(msg []byte, epoch int64) (tick model.PriceTick, ok bool, err error)
}

// run keeps the stream connected until ctx is cancelled, reconnecting with
// exponential backoff.
func (s stream) run(ctx context.Context, logger *slog.Logger, priceChan chan<- model.PriceTick) error {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			logger.Info(s.name+": context cancelled, shutting down")
			return nil
		}

		logger.Info(s.name+": connecting to WebSocket", "url", s.url, "backoff", backoff)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err == nil && s.subscribe != nil {
			if err = s.subscribe(c); err != nil {
				c.Close()
			}
		}
		if err != nil {
			logger.Error(s.name+": WebSocket connection failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff = min(backoff*2, maxBackoff)
			}
			continue
		}

		backoff = initialBackoff
		logger.Info(s.name + ": connected successfully")
		if done := s.read(ctx, logger, c, priceChan); done {
			return nil
		}
	}
}

// read pumps messages until the connection fails or ctx ends. It reports
// whether the caller should stop.
func (s stream) read(ctx context.Context, logger *slog.Logger, c *websocket.Conn, priceChan chan<- model.PriceTick) bool {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()
	defer c.Close()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(s.name + ": context cancelled, closing connection")
				return true
			}
			logger.Error(s.name+": failed to read message", "error", err)
			return false
		}

		tick, ok, err := s.parse(message, time.Now().UnixMicro())
		if err != nil {
			logger.Warn(s.name+": failed to parse message", "error", err)
			continue
		}
		if !ok {
			continue
		}

		select {
		case priceChan <- tick:
			logger.Debug(s.name+": sent price tick", "bid", tick.Bid, "ask", tick.Ask)
		case <-ctx.Done():
			logger.Info(s.name + ": context cancelled while sending price tick")
			return true
		}
	}
}
