package service

import (
	"context"
	"errors"
	"poseidon/internal/dto"
	"poseidon/pkg/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCandleSource struct {
	mock.Mock
}

func (m *mockCandleSource) GetKlines(ctx context.Context, symbol string, granularity int, from, to time.Time) ([]dto.Candle, error) {
	args := m.Called(ctx, symbol, granularity, from, to)
	candles, _ := args.Get(0).([]dto.Candle)
	return candles, args.Error(1)
}

func closesToCandles(closes ...float64) []dto.Candle {
	out := make([]dto.Candle, len(closes))
	for i, c := range closes {
		out[i] = dto.Candle{Time: int64(i) * 900_000, Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return out
}

func flat(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func TestClassifyPhase_TooFewCandles(t *testing.T) {
	tp := ClassifyPhase(closesToCandles(flat(49, 100)...))
	assert.Equal(t, dto.PhaseUnknown, tp.Phase)
	assert.False(t, tp.Phase.HasOpinion())
}

func TestClassifyPhase_FlatIsNeutral(t *testing.T) {
	tp := ClassifyPhase(closesToCandles(flat(60, 100)...))
	assert.Equal(t, dto.PhaseNeutral, tp.Phase)
	assert.Zero(t, tp.Change1h)
	assert.Empty(t, tp.BBBreakout)
}

func TestClassifyPhase_Pumping(t *testing.T) {
	closes := append(flat(56, 100), 104, 108, 112, 116)
	tp := ClassifyPhase(closesToCandles(closes...))

	assert.Equal(t, dto.PhasePumping, tp.Phase)
	assert.InDelta(t, 16, tp.Change1h, 1e-9)
	assert.InDelta(t, 4/112.0*100, tp.Velocity, 1e-9)
	assert.Greater(t, tp.Histogram, 0.0)
	assert.InDelta(t, 16, tp.PriorRise, 1e-9)
}

func TestClassifyFeatures(t *testing.T) {
	tests := []struct {
		name     string
		features dto.TrendPhase
		want     dto.Phase
	}{
		{"peak", dto.TrendPhase{Change1h: 35, Velocity: 1, Histogram: -0.2}, dto.PhasePeak},
		{"still accelerating is not peak", dto.TrendPhase{Change1h: 35, Velocity: 5, Histogram: 0.4}, dto.PhasePumping},
		{"pumping", dto.TrendPhase{Change1h: 13, Velocity: 2, Histogram: 0.1}, dto.PhasePumping},
		{"pump without momentum", dto.TrendPhase{Change1h: 13, Velocity: 2, Histogram: -0.1}, dto.PhaseNeutral},
		{"reversal", dto.TrendPhase{Change1h: 2, Velocity: -1, Histogram: -0.3, PriorRise: 20}, dto.PhaseReversal},
		{"dip without prior rise", dto.TrendPhase{Change1h: -2, Velocity: -1, Histogram: -0.3, PriorRise: 5}, dto.PhaseNeutral},
		{"upper band breakout", dto.TrendPhase{Change1h: 4, Velocity: 1, Histogram: 0.2, BBBreakout: "upper"}, dto.PhasePumping},
		{"lower band after rise", dto.TrendPhase{Change1h: -4, Velocity: 0.5, Histogram: -0.2, PriorRise: 18, BBBreakout: "lower"}, dto.PhaseReversal},
		{"quiet", dto.TrendPhase{Change1h: 1, Velocity: 0.1, Histogram: 0.01}, dto.PhaseNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFeatures(tt.features).Phase)
		})
	}
}

func TestPriorRise(t *testing.T) {
	closes := append(flat(40, 100), 110, 120, 130, 125, 120)
	assert.InDelta(t, 30, priorRise(closes), 1e-9)
}

func TestTrendPhaseDetector_Detect(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	from := now.Add(-51 * 15 * time.Minute)

	t.Run("fetch error", func(t *testing.T) {
		src := &mockCandleSource{}
		src.On("GetKlines", mock.Anything, "XBTUSDTM", 15, from, now).Return(nil, errors.New("boom"))

		tp := NewTrendPhaseDetector(src, logger.NewNop(), fixedClock(now)).Detect(context.Background(), "XBTUSDTM")
		assert.Equal(t, dto.PhaseError, tp.Phase)
		src.AssertExpectations(t)
	})

	t.Run("short history", func(t *testing.T) {
		src := &mockCandleSource{}
		src.On("GetKlines", mock.Anything, "XBTUSDTM", 15, from, now).Return(closesToCandles(flat(20, 100)...), nil)

		tp := NewTrendPhaseDetector(src, logger.NewNop(), fixedClock(now)).Detect(context.Background(), "XBTUSDTM")
		assert.Equal(t, dto.PhaseUnknown, tp.Phase)
	})

	t.Run("classified", func(t *testing.T) {
		src := &mockCandleSource{}
		src.On("GetKlines", mock.Anything, "XBTUSDTM", 15, from, now).Return(closesToCandles(flat(60, 100)...), nil)

		tp := NewTrendPhaseDetector(src, logger.NewNop(), fixedClock(now)).Detect(context.Background(), "XBTUSDTM")
		require.Equal(t, dto.PhaseNeutral, tp.Phase)
		assert.True(t, tp.Phase.HasOpinion())
	})
}
