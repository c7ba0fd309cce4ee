package service

import (
	"math"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/pkg/indicators"
	"poseidon/pkg/utils"
	"time"
)

const (
	confidenceBase     = 50.0
	memeConfidenceCap  = 90.0
	thinSignalFloor    = 65.0
	thinSignalPenalty  = 5.0
	thinSignalMinScore = 70.0
)

// ConfidenceScorer turns a TA snapshot into a 0..100 score. The only input besides the
// snapshot is the clock used for the session bias.
type ConfidenceScorer struct {
	bias  config.SessionBias
	clock utils.Clock
}

func NewConfidenceScorer(bias config.SessionBias, clock utils.Clock) *ConfidenceScorer {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &ConfidenceScorer{bias: bias, clock: clock}
}

func (s *ConfidenceScorer) Calculate(snap dto.TASnapshot) dto.ConfidenceResult {
	breakdown := make(map[string]float64)
	score := confidenceBase
	add := func(key string, v float64) {
		if v != 0 {
			breakdown[key] += v
			score += v
		}
	}

	bias := snap.Signal
	if !bias.Directional() {
		bias = dto.SignalNeutral
	}
	bearish := bias == dto.SignalBearish

	if bias.Directional() {
		add("signal", 10)
	} else {
		add("signal", -10)
	}

	switch {
	case snap.MACDSignal == dto.MACDBuy && !bearish, snap.MACDSignal == dto.MACDSell && bearish:
		add("macd", 6)
	case snap.MACDSignal == dto.MACDSell && !bearish, snap.MACDSignal == dto.MACDBuy && bearish:
		add("macd", -6)
	}

	// buying near the lower band (selling near the upper) has room to run
	switch {
	case snap.BBSignal == dto.BBLower && !bearish, snap.BBSignal == dto.BBUpper && bearish:
		add("bollinger", 3)
	case snap.BBSignal == dto.BBUpper && !bearish, snap.BBSignal == dto.BBLower && bearish:
		add("bollinger", -3)
	}

	hasRSI := snap.RSI > 0 && utils.IsFinite(snap.RSI)
	if hasRSI {
		rsi := snap.RSI
		if bearish {
			rsi = 100 - rsi
		}
		add("rsi", rsiAdjustment(rsi))
	}

	if snap.VolumeSpike {
		add("volume_spike", 4)
	}
	if snap.TrapWarning {
		add("trap", -12)
	}

	if bias.Directional() {
		headroom, position := fibAdjustment(snap, bearish)
		add("fib_headroom", headroom)
		add("range_position", position)
	}

	add("session", s.sessionBias(s.clock().UTC()))

	if snap.Category == dto.CategoryMover {
		add("category", 5)
	}

	score = utils.Clamp(score, 0, 100)
	if snap.Category == dto.CategoryMeme && score > memeConfidenceCap {
		score = memeConfidenceCap
	}
	if !snap.VolumeSpike && !hasRSI && score >= thinSignalMinScore {
		score = math.Max(thinSignalFloor, score-thinSignalPenalty)
	}

	return dto.ConfidenceResult{
		Score:     math.Round(score*10) / 10,
		Bias:      bias,
		Breakdown: breakdown,
	}
}

func rsiAdjustment(rsi float64) float64 {
	switch {
	case rsi >= 55 && rsi <= 68:
		return 6
	case rsi < 35:
		return -6
	case rsi > 75:
		return -4
	}
	return 0
}

// fibAdjustment scores the room left to the next retracement level in the trade direction
// and where the price sits inside the range.
func fibAdjustment(snap dto.TASnapshot, bearish bool) (float64, float64) {
	rng := snap.Range7d
	if !rng.Valid() {
		rng = snap.Range24h
	}
	if !rng.Valid() {
		rng = snap.Range30d
	}
	if !rng.Valid() || !utils.IsPositiveFinite(snap.Price) {
		return 0, 0
	}

	levels := indicators.FibLevels(rng.Low, rng.High)
	var (
		next float64
		ok   bool
	)
	if bearish {
		next, ok = indicators.NextLevelBelow(levels, snap.Price)
	} else {
		next, ok = indicators.NextLevelAbove(levels, snap.Price)
	}

	var headroomScore float64
	if ok {
		headroom := math.Abs(next-snap.Price) / snap.Price * 100
		switch {
		case headroom >= 8:
			headroomScore = 10
		case headroom >= 5:
			headroomScore = 6
		case headroom >= 3:
			headroomScore = 2
		case headroom >= 1.5:
			headroomScore = -4
		default:
			headroomScore = -10
		}
	}

	pos := indicators.RangePosition(rng.Low, rng.High, snap.Price)
	var positionScore float64
	if bearish {
		switch {
		case pos >= 0.85:
			positionScore = 5
		case pos <= 0.10:
			positionScore = -5
		}
	} else {
		switch {
		case pos <= 0.15:
			positionScore = 5
		case pos >= 0.90:
			positionScore = -5
		}
	}
	return headroomScore, positionScore
}

func (s *ConfidenceScorer) sessionBias(now time.Time) float64 {
	var v float64
	switch h := now.Hour(); {
	case h < 7:
		v = s.bias.Asia
	case h < 13:
		v = s.bias.London
	case h < 17:
		v = s.bias.Overlap
	case h < 21:
		v = s.bias.NewYork
	default:
		v = s.bias.LateSession
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		v += s.bias.Weekend
	}
	return v
}
