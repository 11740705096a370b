package arbitrage

import (
	"context"
	"errors"
	"latencysim/internal/latency"
	"latencysim/internal/model"
	"latencysim/internal/tape"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepository) LogPriceTick(ctx context.Context, tick model.PriceTick) error {
	args := m.Called(ctx, tick)
	return args.Error(0)
}

func (m *MockRepository) LogSnapshot(ctx context.Context, snap model.QuoteSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockRepository) LogHit(ctx context.Context, hit model.Opportunity) error {
	args := m.Called(ctx, hit)
	return args.Error(0)
}

func (m *MockRepository) SaveSweep(ctx context.Context, run model.SweepRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func TestConsolidator_ProcessTick(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	t.Run("no opportunity", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LogPriceTick", mock.Anything, mock.Anything).Return(nil)
		mockRepo.On("LogSnapshot", mock.Anything, mock.Anything).Return(nil)
		engine := NewConsolidator(logger, mockRepo, 0)

		engine.ProcessTick(ctx, model.PriceTick{Exchange: "kraken", Epoch: 1, Bid: 60000, BidSize: 1, Ask: 60050, AskSize: 1})
		engine.ProcessTick(ctx, model.PriceTick{Exchange: "binance", Epoch: 2, Bid: 60000, BidSize: 1, Ask: 60050, AskSize: 1})

		mockRepo.AssertNotCalled(t, "LogHit", mock.Anything, mock.Anything)
		mockRepo.AssertNumberOfCalls(t, "LogSnapshot", 2)
		assert.Empty(t, engine.Hits())
	})

	t.Run("profitable opportunity", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LogPriceTick", mock.Anything, mock.Anything).Return(nil)
		mockRepo.On("LogSnapshot", mock.Anything, mock.Anything).Return(nil)
		mockRepo.On("LogHit", mock.Anything, model.Opportunity{Epoch: 2, TradedQty: 0.4}).Return(nil).Once()
		engine := NewConsolidator(logger, mockRepo, 0)

		engine.ProcessTick(ctx, model.PriceTick{Exchange: "kraken", Epoch: 1, Bid: 60000, BidSize: 2, Ask: 60050, AskSize: 0.4})
		engine.ProcessTick(ctx, model.PriceTick{Exchange: "binance", Epoch: 2, Bid: 61000, BidSize: 0.5, Ask: 61050, AskSize: 3})

		mockRepo.AssertExpectations(t)
		assert.Equal(t, []model.Opportunity{{Epoch: 2, TradedQty: 0.4}}, engine.Hits())
	})

	t.Run("capped quantity and repository failures are not fatal", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("LogPriceTick", mock.Anything, mock.Anything).Return(errors.New("down"))
		mockRepo.On("LogSnapshot", mock.Anything, mock.Anything).Return(errors.New("down"))
		mockRepo.On("LogHit", mock.Anything, mock.Anything).Return(errors.New("down"))
		engine := NewConsolidator(logger, mockRepo, 0.1)

		engine.ProcessTick(ctx, model.PriceTick{Exchange: "kraken", Epoch: 1, Bid: 100, BidSize: 5, Ask: 101, AskSize: 5})
		engine.ProcessTick(ctx, model.PriceTick{Exchange: "binance", Epoch: 2, Bid: 103, BidSize: 5, Ask: 104, AskSize: 5})

		assert.Equal(t, []model.Opportunity{{Epoch: 2, TradedQty: 0.1}}, engine.Hits())
		assert.Len(t, engine.Tape().Snapshots, 2)
	})
}

func TestConsolidator_RunFeedsEstimator(t *testing.T) {
	engine := NewConsolidator(slog.New(slog.NewJSONHandler(os.Stdout, nil)), nil, 0)

	ticks := make(chan model.PriceTick, 4)
	ticks <- model.PriceTick{Exchange: "kraken", Epoch: 1000, Bid: 100, BidSize: 1, Ask: 101, AskSize: 2}
	ticks <- model.PriceTick{Exchange: "binance", Epoch: 1010, Bid: 103, BidSize: 2, Ask: 104, AskSize: 1}
	ticks <- model.PriceTick{Exchange: "binance", Epoch: 1100, Bid: 100.5, BidSize: 2, Ask: 101.5, AskSize: 1}
	close(ticks)
	engine.Run(context.Background(), ticks)

	hits := engine.Hits()
	require.Equal(t, []model.Opportunity{{Epoch: 1010, TradedQty: 2}}, hits)

	recorded := engine.Tape()
	assert.Contains(t, recorded.Columns, "price_bid_0_binance")
	assert.Contains(t, recorded.Columns, "vol_ask_0_kraken")

	atDetection, err := latency.Estimate(hits, recorded, 0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, atDetection) // (103 - 101) * 2

	delayed, err := latency.Estimate(hits, recorded, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, delayed) // best bid 100.5 < best ask 101
}

func TestDetect(t *testing.T) {
	rule := tape.DefaultColumnRule()
	snap := func(values map[string]float64) model.QuoteSnapshot {
		return model.QuoteSnapshot{Epoch: 5, Values: values}
	}
	resolve := func(s model.QuoteSnapshot) tape.ColumnSet {
		cols, err := rule.Resolve(tape.Schema([]model.QuoteSnapshot{s}))
		require.NoError(t, err)
		return cols
	}

	tests := []struct {
		name   string
		values map[string]float64
		maxQty float64
		want   float64
		hit    bool
	}{
		{"crossed venues", map[string]float64{
			"price_bid_0_a": 102, "vol_bid_0_a": 3, "price_ask_0_a": 103,
			"price_bid_0_b": 100, "price_ask_0_b": 101, "vol_ask_0_b": 2,
		}, 0, 2, true},
		{"not crossed", map[string]float64{
			"price_bid_0_a": 100, "price_ask_0_a": 101,
			"price_bid_0_b": 100, "price_ask_0_b": 101,
		}, 5, 0, false},
		{"same venue crossed book", map[string]float64{
			"price_bid_0_a": 102, "price_ask_0_a": 101,
		}, 5, 0, false},
		{"sizes missing uses cap", map[string]float64{
			"price_bid_0_a": 102, "price_ask_0_b": 101,
		}, 1.5, 1.5, true},
		{"sizes missing without cap", map[string]float64{
			"price_bid_0_a": 102, "price_ask_0_b": 101,
		}, 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := snap(tc.values)
			got, ok := Detect(s, resolve(s), tc.maxQty)
			assert.Equal(t, tc.hit, ok)
			if tc.hit {
				assert.Equal(t, tc.want, got.TradedQty)
				assert.Equal(t, int64(5), got.Epoch)
			}
		})
	}
}

func TestDetectHits(t *testing.T) {
	recorded := model.Tape{Snapshots: []model.QuoteSnapshot{
		{Epoch: 20, Values: map[string]float64{"price_bid_0_a": 105, "price_ask_0_b": 101, "vol_bid_0_a": 1, "vol_ask_0_b": 1}},
		{Epoch: 10, Values: map[string]float64{"price_bid_0_a": 102, "price_ask_0_b": 101, "vol_bid_0_a": 4, "vol_ask_0_b": 3}},
		{Epoch: 30, Values: map[string]float64{"price_bid_0_a": 100, "price_ask_0_b": 101}},
	}}

	hits, err := DetectHits(recorded, tape.DefaultColumnRule(), 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Opportunity{{Epoch: 10, TradedQty: 3}, {Epoch: 20, TradedQty: 1}}, hits)
}

func TestDetectHits_ExplicitColumns(t *testing.T) {
	recorded := model.Tape{Snapshots: []model.QuoteSnapshot{
		{Epoch: 1, Values: map[string]float64{
			"best_bid_a": 105, "best_ask_a": 106, "size_bid_a": 2,
			"best_bid_b": 99, "best_ask_b": 100, "size_ask_b": 0.5,
		}},
		{Epoch: 2, Values: map[string]float64{
			"best_bid_a": 101, "best_ask_a": 100,
			"best_bid_b": 99, "best_ask_b": 102,
		}},
	}}
	rule := tape.ColumnRule{
		Bids:    []string{"best_bid_a", "best_bid_b"},
		Asks:    []string{"best_ask_a", "best_ask_b"},
		Volumes: []string{"size_bid_a", "size_ask_b"},
	}

	hits, err := DetectHits(recorded, rule, 0)
	require.NoError(t, err)
	// epoch 2 is a crossed book on venue a alone
	assert.Equal(t, []model.Opportunity{{Epoch: 1, TradedQty: 0.5}}, hits)

	capped, err := DetectHits(recorded, tape.ColumnRule{Bids: rule.Bids, Asks: rule.Asks}, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.Opportunity{{Epoch: 1, TradedQty: 1}}, capped)
}

func TestSameVenue(t *testing.T) {
	assert.True(t, sameVenue("price_bid_0_kraken", "price_ask_0_kraken"))
	assert.False(t, sameVenue("price_bid_0_kraken", "price_ask_0_binance"))
	assert.True(t, sameVenue("best_bid_a", "best_ask_a"))
	assert.False(t, sameVenue("best_bid_a", "best_ask_b"))
	assert.False(t, sameVenue("x", "y"))
}
