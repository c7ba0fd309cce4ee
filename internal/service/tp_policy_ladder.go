package service

import (
	"context"
	"poseidon/internal/dto"
	"poseidon/pkg/utils"
)

// LadderTrailPolicy takes a fraction of the remaining size at each ROI step, then
// trails the best price with a band that narrows as more steps fire.
type LadderTrailPolicy struct{}

func (LadderTrailPolicy) Name() dto.ExitPolicyName {
	return dto.PolicyLadder
}

func (LadderTrailPolicy) Apply(ctx context.Context, st *dto.PositionTrackState, tc TickContext, exec PolicyExecutor) {
	cfg := tc.Config

	// a gap through several thresholds fires all of them in this tick
	for st.FiredSteps < len(tc.Steps) && tc.Roi >= tc.Steps[st.FiredSteps].Roi {
		if cfg.MinRemainderContracts > 0 && st.Size <= cfg.MinRemainderContracts {
			break
		}
		qty, ok := partialQty(st, tc.Steps[st.FiredSteps].Take)
		if !ok {
			break
		}
		if err := exec.PartialClose(ctx, st, qty); err != nil {
			break
		}
		LadderTrailPolicy{}.Settle(st, tc, qty)
		exec.StepFired(st, qty, tc.Roi)
	}

	if st.TrailActive && st.Favorable(tc.Price) {
		st.PeakPrice = tc.Price
		st.TrailStop = tightenStop(st, st.StopFor(tc.Price, st.TrailDrop))
	}

	if !st.TrailActive || st.Size <= 0 {
		return
	}
	switch {
	case st.TrailHit(tc.Price):
		exitAll(ctx, st, dto.ExitTrailStop, exec)
	case reversalExit(tc):
		exitAll(ctx, st, dto.ExitReversal, exec)
	}
}

func (LadderTrailPolicy) Settle(st *dto.PositionTrackState, tc TickContext, qty float64) {
	st.Size = utils.SubQty(st.Size, qty)
	st.FiredSteps++
	st.TrailActive = true
	st.PeakPrice = tc.Price
	st.TrailDrop = tc.Config.EffectiveTrailDrop(st.FiredSteps)
	st.TrailStop = tightenStop(st, st.StopFor(tc.Price, st.TrailDrop))
	st.LastAction = dto.ActionPartial
}
