package dto

import (
	"math"
	"sort"
	"time"
)

// DefaultMarginFallbackRatio estimates margin as a share of notional when the real margin is unknown.
const DefaultMarginFallbackRatio = 0.2

// MinTrailDrop is the floor for the tightened trailing drop.
const MinTrailDrop = 0.10

// TrailTightenPerStep is subtracted from the base drop for every ladder step after the first.
const TrailTightenPerStep = 0.05

type TPStep struct {
	Roi  float64 `json:"roi" validate:"gt=0"`
	Take float64 `json:"take" validate:"gt=0,lte=1"`
}

type TpConfig struct {
	Policy                ExitPolicyName `json:"policy" validate:"oneof=ladder single"`
	Steps                 []TPStep       `json:"steps" validate:"dive"`
	StepPct               float64        `json:"step_pct" validate:"gte=0"`
	TakeFraction          float64        `json:"take_fraction" validate:"gte=0,lte=1"`
	MaxSteps              int            `json:"max_steps" validate:"gte=0,lte=50"`
	TrailDropPct          float64        `json:"trail_drop_pct" validate:"gt=0,lt=1"`
	MinExitConfidence     float64        `json:"min_exit_confidence" validate:"gte=0,lte=100"`
	EmitThrottle          time.Duration  `json:"emit_throttle" validate:"gte=0"`
	MinRemainderContracts float64        `json:"min_remainder_contracts" validate:"gte=0"`
	MarginFallbackRatio   float64        `json:"margin_fallback_ratio" validate:"gt=0,lte=1"`
	ExecutorTimeout       time.Duration  `json:"executor_timeout" validate:"gte=0"`
	PartialTriggerRoi     float64        `json:"partial_trigger_roi" validate:"gte=0"`
	PartialTakeFraction   float64        `json:"partial_take_fraction" validate:"gte=0,lt=1"`
	RoiDrawdownPct        float64        `json:"roi_drawdown_pct" validate:"gte=0,lt=1"`
}

func DefaultTpConfig() TpConfig {
	return TpConfig{
		Policy:              PolicyLadder,
		StepPct:             50,
		TakeFraction:        0.25,
		MaxSteps:            4,
		TrailDropPct:        0.25,
		MinExitConfidence:   60,
		EmitThrottle:        15 * time.Second,
		MarginFallbackRatio: DefaultMarginFallbackRatio,
		ExecutorTimeout:     10 * time.Second,
		PartialTriggerRoi:   100,
		PartialTakeFraction: 0.4,
		RoiDrawdownPct:      0.30,
	}
}

// ResolvedSteps returns the explicit steps sorted by ROI, or generates
// MaxSteps steps spaced StepPct apart taking TakeFraction each.
func (c TpConfig) ResolvedSteps() []TPStep {
	if len(c.Steps) > 0 {
		steps := make([]TPStep, len(c.Steps))
		copy(steps, c.Steps)
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].Roi < steps[j].Roi })
		return steps
	}
	if c.StepPct <= 0 || c.TakeFraction <= 0 || c.MaxSteps <= 0 {
		return nil
	}
	steps := make([]TPStep, 0, c.MaxSteps)
	for i := 1; i <= c.MaxSteps; i++ {
		steps = append(steps, TPStep{Roi: c.StepPct * float64(i), Take: c.TakeFraction})
	}
	return steps
}

// EffectiveTrailDrop tightens the base drop by 5 points per fired step after the first, floored at 10%.
func (c TpConfig) EffectiveTrailDrop(firedSteps int) float64 {
	if firedSteps < 1 {
		firedSteps = 1
	}
	return math.Max(MinTrailDrop, c.TrailDropPct-TrailTightenPerStep*float64(firedSteps-1))
}

type PositionOpen struct {
	Symbol        string   `json:"symbol" validate:"required"`
	Side          Side     `json:"side" validate:"required,oneof=long short"`
	EntryPrice    float64  `json:"entry_price" validate:"gt=0"`
	Size          float64  `json:"size" validate:"gt=0"`
	InitialMargin *float64 `json:"initial_margin,omitempty" validate:"omitempty,gt=0"`
	LotSize       float64  `json:"lot_size" validate:"gte=0"`
	MinSize       float64  `json:"min_size" validate:"gte=0"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

type PriceTick struct {
	Symbol       string   `json:"symbol" validate:"required"`
	CurrentPrice float64  `json:"current_price"`
	Confidence   *float64 `json:"confidence,omitempty"`
	TrendPhase   Phase    `json:"trend_phase,omitempty"`
}

// PositionTrackState is the per-symbol exit state owned by the tracker.
type PositionTrackState struct {
	Symbol          string         `json:"symbol"`
	Side            Side           `json:"side"`
	Policy          ExitPolicyName `json:"policy"`
	EntryPrice      float64        `json:"entry_price"`
	Size            float64        `json:"size"`
	OriginalSize    float64        `json:"original_size"`
	LotSize         float64        `json:"lot_size"`
	MinSize         float64        `json:"min_size"`
	InitialMargin   *float64       `json:"initial_margin,omitempty"`
	EntryConfidence *float64       `json:"entry_confidence,omitempty"`
	FiredSteps      int            `json:"fired_steps"`
	TrailActive     bool           `json:"trail_active"`
	PeakPrice       float64        `json:"peak_price"`
	TrailStop       float64        `json:"trail_stop"`
	TrailDrop       float64        `json:"trail_drop"`
	MaxRoi          float64        `json:"max_roi"`
	LastRoi         float64        `json:"last_roi"`
	LastPnl         float64        `json:"last_pnl"`
	LastPrice       float64        `json:"last_price"`
	PartialDone     bool           `json:"tp40_done"`
	PendingQty      float64        `json:"pending_qty,omitempty"`
	LastAction      BrainAction    `json:"last_action"`
	Exited          bool           `json:"exited"`
	ExitReason      ExitReason     `json:"exit_reason,omitempty"`
	LastEmitAt      time.Time      `json:"last_emit_at"`
	OpenedAt        time.Time      `json:"opened_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (s *PositionTrackState) Clone() *PositionTrackState {
	if s == nil {
		return nil
	}
	out := *s
	if s.InitialMargin != nil {
		v := *s.InitialMargin
		out.InitialMargin = &v
	}
	if s.EntryConfidence != nil {
		v := *s.EntryConfidence
		out.EntryConfidence = &v
	}
	return &out
}

// BaseMargin is the ROI denominator: the real margin when known, otherwise entry*size*fallbackRatio.
func (s *PositionTrackState) BaseMargin(fallbackRatio float64) float64 {
	if s.InitialMargin != nil && *s.InitialMargin > 0 {
		return *s.InitialMargin
	}
	if fallbackRatio <= 0 {
		fallbackRatio = DefaultMarginFallbackRatio
	}
	return s.EntryPrice * s.Size * fallbackRatio
}

// Pnl is the unrealized PnL of the remaining size at price.
func (s *PositionTrackState) Pnl(price float64) float64 {
	if s.Side == SideShort {
		return (s.EntryPrice - price) * s.Size
	}
	return (price - s.EntryPrice) * s.Size
}

// Roi is pnl over base margin in percent.
func (s *PositionTrackState) Roi(price, fallbackRatio float64) float64 {
	margin := s.BaseMargin(fallbackRatio)
	if margin <= 0 {
		return 0
	}
	return s.Pnl(price) / margin * 100
}

// Favorable reports whether price is a new favorable extreme relative to the peak.
func (s *PositionTrackState) Favorable(price float64) bool {
	if s.Side == SideShort {
		return price < s.PeakPrice
	}
	return price > s.PeakPrice
}

// StopFor computes the trailing stop from a peak and a drop fraction.
func (s *PositionTrackState) StopFor(peak, drop float64) float64 {
	if s.Side == SideShort {
		return peak * (1 + drop)
	}
	return peak * (1 - drop)
}

// TrailHit reports whether price crossed back through the trailing stop.
func (s *PositionTrackState) TrailHit(price float64) bool {
	if !s.TrailActive || s.TrailStop <= 0 {
		return false
	}
	if s.Side == SideShort {
		return price >= s.TrailStop
	}
	return price <= s.TrailStop
}
