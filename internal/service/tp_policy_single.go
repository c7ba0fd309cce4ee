package service

import (
	"context"
	"poseidon/internal/dto"
	"poseidon/pkg/utils"
)

// SinglePartialPolicy takes one partial once ROI reaches the trigger, then exits
// everything on an ROI drawdown from the high-water mark or on a reversal.
type SinglePartialPolicy struct{}

func (SinglePartialPolicy) Name() dto.ExitPolicyName {
	return dto.PolicySingle
}

func (SinglePartialPolicy) Apply(ctx context.Context, st *dto.PositionTrackState, tc TickContext, exec PolicyExecutor) {
	cfg := tc.Config

	if !st.PartialDone && cfg.PartialTriggerRoi > 0 && tc.Roi >= cfg.PartialTriggerRoi {
		if qty, ok := partialQty(st, cfg.PartialTakeFraction); ok {
			if err := exec.PartialClose(ctx, st, qty); err == nil {
				SinglePartialPolicy{}.Settle(st, tc, qty)
				exec.StepFired(st, qty, tc.Roi)
			}
		}
	}

	if !st.PartialDone || st.Size <= 0 {
		return
	}
	if st.Favorable(tc.Price) {
		st.PeakPrice = tc.Price
	}

	roi := st.Roi(tc.Price, cfg.MarginFallbackRatio)
	drawdown := st.MaxRoi > 0 && roi <= st.MaxRoi*(1-cfg.RoiDrawdownPct)
	switch {
	case drawdown:
		exitAll(ctx, st, dto.ExitDrawdown, exec)
	case reversalExit(tc):
		exitAll(ctx, st, dto.ExitReversal, exec)
	}
}

func (SinglePartialPolicy) Settle(st *dto.PositionTrackState, tc TickContext, qty float64) {
	st.Size = utils.SubQty(st.Size, qty)
	st.PartialDone = true
	st.FiredSteps = 1
	st.TrailActive = true
	st.PeakPrice = tc.Price
	st.LastAction = dto.ActionPartial40
	// the high-water mark restarts on the remaining size
	st.MaxRoi = st.Roi(tc.Price, tc.Config.MarginFallbackRatio)
}
