package service

import (
	"context"
	"fmt"
	"math"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/pkg/indicators"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"time"
)

const (
	phaseGranularity   = 15
	phaseMinCandles    = 50
	phaseLookback      = 50 * 15 * time.Minute
	phaseCandlesPerHr  = 4
	phaseRiseWindow    = 16
	peakChangePct      = 30.0
	peakCoolingPct     = 3.0
	pumpingChangePct   = 12.0
	reversalPriorRise  = 15.0
	breakoutUpperLabel = "upper"
	breakoutLowerLabel = "lower"
)

// TrendPhaseDetector classifies the short-term move from 15m candles.
type TrendPhaseDetector struct {
	candles contract.CandleSource
	log     *logger.Logger
	clock   utils.Clock
}

func NewTrendPhaseDetector(candles contract.CandleSource, log *logger.Logger, clock utils.Clock) *TrendPhaseDetector {
	if clock == nil {
		clock = utils.SystemClock
	}
	return &TrendPhaseDetector{candles: candles, log: log, clock: clock}
}

// Detect never fails: a fetch error is reported as PhaseError and a short history as PhaseUnknown.
func (d *TrendPhaseDetector) Detect(ctx context.Context, symbol string) dto.TrendPhase {
	to := d.clock()
	// one spare candle so the in-progress one does not leave us short
	from := to.Add(-phaseLookback - phaseGranularity*time.Minute)
	candles, err := d.candles.GetKlines(ctx, symbol, phaseGranularity, from, to)
	if err != nil {
		d.log.DebugContext(ctx, "Trend phase fetch failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return dto.TrendPhase{Phase: dto.PhaseError, Reason: err.Error()}
	}
	return ClassifyPhase(candles)
}

// ClassifyPhase is the pure part of Detect.
func ClassifyPhase(candles []dto.Candle) dto.TrendPhase {
	if len(candles) < phaseMinCandles {
		return dto.TrendPhase{Phase: dto.PhaseUnknown, Reason: fmt.Sprintf("%d candles", len(candles))}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	n := len(closes)
	last := closes[n-1]

	tp := dto.TrendPhase{
		Change1h:  pctChange(closes[n-1-phaseCandlesPerHr], last),
		Velocity:  pctChange(closes[n-2], last),
		PriorRise: priorRise(closes),
	}
	if hist, ok := indicators.MACD(closes, 12, 26, 9).LastHistogram(); ok {
		tp.Histogram = hist
	}
	bb := indicators.Bollinger(closes, 20, 2)
	switch {
	case bb.Upper[n-1] > 0 && last > bb.Upper[n-1]:
		tp.BBBreakout = breakoutUpperLabel
	case bb.Lower[n-1] > 0 && last < bb.Lower[n-1]:
		tp.BBBreakout = breakoutLowerLabel
	}
	return classifyFeatures(tp)
}

// classifyFeatures picks the phase from already computed features.
func classifyFeatures(tp dto.TrendPhase) dto.TrendPhase {
	switch {
	case tp.Change1h > peakChangePct && tp.Velocity < peakCoolingPct && tp.Histogram < 0:
		tp.Phase = dto.PhasePeak
		tp.Reason = "1h move above 30% is cooling with a negative histogram"
	case tp.Change1h > pumpingChangePct && tp.Histogram > 0:
		tp.Phase = dto.PhasePumping
		tp.Reason = "1h move above 12% with a positive histogram"
	case tp.Histogram < 0 && tp.Velocity < 0 && tp.PriorRise > reversalPriorRise:
		tp.Phase = dto.PhaseReversal
		tp.Reason = "turning down after a rise above 15%"
	case tp.BBBreakout == breakoutUpperLabel && tp.Histogram > 0:
		tp.Phase = dto.PhasePumping
		tp.Reason = "close above the upper band"
	case tp.BBBreakout == breakoutLowerLabel && tp.Histogram < 0 && tp.PriorRise > reversalPriorRise:
		tp.Phase = dto.PhaseReversal
		tp.Reason = "close below the lower band after a rise"
	default:
		tp.Phase = dto.PhaseNeutral
	}
	return tp
}

func pctChange(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}

// priorRise measures the run-up into the highest close of the last few hours, from the
// lowest close before that peak.
func priorRise(closes []float64) float64 {
	n := len(closes)
	start := n - phaseRiseWindow
	if start < 0 {
		start = 0
	}
	peakIdx := start
	for i := start; i < n; i++ {
		if closes[i] >= closes[peakIdx] {
			peakIdx = i
		}
	}
	low := math.Inf(1)
	for i := 0; i <= peakIdx; i++ {
		if closes[i] < low {
			low = closes[i]
		}
	}
	return pctChange(low, closes[peakIdx])
}
