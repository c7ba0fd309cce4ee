package service

import (
	"poseidon/config"
	"poseidon/internal/dto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Tuesday, London session.
var tuesdayLondon = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func strongBullish() dto.TASnapshot {
	return dto.TASnapshot{
		Symbol:      "SOLUSDTM",
		Price:       84,
		RSI:         60,
		MACDSignal:  dto.MACDBuy,
		BBSignal:    dto.BBNeutral,
		VolumeSpike: true,
		Signal:      dto.SignalBullish,
		Range7d:     dto.PriceRange{High: 120, Low: 80},
		Category:    dto.CategoryRegular,
	}
}

func TestConfidenceScorer_StrongBullish(t *testing.T) {
	scorer := NewConfidenceScorer(config.SessionBias{}, fixedClock(tuesdayLondon))

	res := scorer.Calculate(strongBullish())

	// 50 + signal 10 + macd 6 + rsi 6 + spike 4 + headroom 6 (next fib 89.44) + near low 5
	assert.Equal(t, 87.0, res.Score)
	assert.Equal(t, dto.SignalBullish, res.Bias)
	assert.Equal(t, 6.0, res.Breakdown["fib_headroom"])
	assert.Equal(t, 5.0, res.Breakdown["range_position"])
}

func TestConfidenceScorer_BearishMirrorsBands(t *testing.T) {
	scorer := NewConfidenceScorer(config.SessionBias{}, fixedClock(tuesdayLondon))

	snap := strongBullish()
	snap.Signal = dto.SignalBearish
	snap.MACDSignal = dto.MACDSell
	snap.RSI = 40
	snap.Price = 116

	res := scorer.Calculate(snap)

	// 50 + 10 + 6 + rsi(mirrored 60) 6 + 4 + headroom 2 (next fib 111.44) + near high 5
	assert.Equal(t, 83.0, res.Score)
	assert.Equal(t, dto.SignalBearish, res.Bias)
}

func TestConfidenceScorer_Adjustments(t *testing.T) {
	tests := []struct {
		name  string
		bias  config.SessionBias
		now   time.Time
		snap  dto.TASnapshot
		score float64
	}{
		{
			name:  "neutral signal without rsi",
			now:   tuesdayLondon,
			snap:  dto.TASnapshot{Signal: dto.SignalNeutral, Price: 10},
			score: 40,
		},
		{
			name:  "thin signal is damped",
			now:   tuesdayLondon,
			snap:  dto.TASnapshot{Signal: dto.SignalBullish, MACDSignal: dto.MACDBuy, BBSignal: dto.BBLower, Price: 81, Range7d: dto.PriceRange{High: 120, Low: 80}},
			score: 79,
		},
		{
			name:  "thin signal damping floors at 65",
			bias:  config.SessionBias{London: 1},
			now:   tuesdayLondon,
			snap:  dto.TASnapshot{Signal: dto.SignalBullish, MACDSignal: dto.MACDBuy, BBSignal: dto.BBLower, Price: 10},
			score: 65,
		},
		{
			name: "meme capped at 90",
			bias: config.SessionBias{London: 2},
			now:  tuesdayLondon,
			snap: func() dto.TASnapshot {
				s := strongBullish()
				s.BBSignal = dto.BBLower
				s.Category = dto.CategoryMeme
				return s
			}(),
			score: 90,
		},
		{
			name: "mover bonus",
			now:  tuesdayLondon,
			snap: func() dto.TASnapshot {
				s := strongBullish()
				s.Category = dto.CategoryMover
				return s
			}(),
			score: 92,
		},
		{
			name: "trap and overbought",
			now:  tuesdayLondon,
			snap: func() dto.TASnapshot {
				s := strongBullish()
				s.TrapWarning = true
				s.RSI = 80
				return s
			}(),
			score: 65,
		},
		{
			name:  "clamped at zero",
			bias:  config.SessionBias{Asia: -60},
			now:   time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC),
			snap:  dto.TASnapshot{Signal: dto.SignalNeutral, MACDSignal: dto.MACDSell, BBSignal: dto.BBUpper, RSI: 80, TrapWarning: true},
			score: 0,
		},
		{
			name: "weekend session",
			bias: config.SessionBias{London: 2, Weekend: -3},
			now:  time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
			snap: strongBullish(),
			// 87 + 2 - 3
			score: 86,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := NewConfidenceScorer(tt.bias, fixedClock(tt.now))
			assert.Equal(t, tt.score, scorer.Calculate(tt.snap).Score)
		})
	}
}

func TestConfidenceScorer_Deterministic(t *testing.T) {
	scorer := NewConfidenceScorer(config.SessionBias{Asia: -2, London: 2, Overlap: 3}, fixedClock(tuesdayLondon))
	snap := strongBullish()

	first := scorer.Calculate(snap)
	second := scorer.Calculate(snap)
	assert.Equal(t, first, second)
}

func TestConfidenceScorer_SessionBuckets(t *testing.T) {
	bias := config.SessionBias{Asia: 1, London: 2, Overlap: 3, NewYork: 4, LateSession: 5}
	scorer := NewConfidenceScorer(bias, nil)

	cases := map[int]float64{0: 1, 6: 1, 7: 2, 12: 2, 13: 3, 16: 3, 17: 4, 20: 4, 21: 5, 23: 5}
	for hour, want := range cases {
		now := time.Date(2024, 3, 5, hour, 30, 0, 0, time.UTC)
		assert.Equal(t, want, scorer.sessionBias(now), "hour %d", hour)
	}
}
