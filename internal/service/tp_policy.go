package service

import (
	"context"
	"poseidon/internal/dto"
	"poseidon/pkg/utils"
)

// TickContext is what an exit policy sees for one price tick. Roi is computed once,
// with the size held at the start of the tick.
type TickContext struct {
	Price      float64
	Roi        float64
	Confidence *float64
	Phase      dto.Phase
	Config     dto.TpConfig
	Steps      []dto.TPStep
}

// PolicyExecutor runs executor calls on behalf of a policy. A nil error means the
// exchange accepted the intent and the policy may commit the matching state change.
type PolicyExecutor interface {
	PartialClose(ctx context.Context, st *dto.PositionTrackState, qty float64) error
	CloseAll(ctx context.Context, st *dto.PositionTrackState, reason dto.ExitReason) error
	StepFired(st *dto.PositionTrackState, qty float64, roi float64)
}

// ExitPolicy mutates a position's exit state for one tick. Settle commits a partial
// close of qty that the exchange accepted.
type ExitPolicy interface {
	Name() dto.ExitPolicyName
	Apply(ctx context.Context, st *dto.PositionTrackState, tc TickContext, exec PolicyExecutor)
	Settle(st *dto.PositionTrackState, tc TickContext, qty float64)
}

// partialQty floors size*take to the lot, lifts it to minSize and reports whether it may be sent.
// A quantity that would close the whole remainder is refused.
func partialQty(st *dto.PositionTrackState, take float64) (float64, bool) {
	qty := utils.FloorToLot(st.Size*take, st.LotSize)
	if st.MinSize > 0 && qty > 0 && qty < st.MinSize {
		qty = st.MinSize
	}
	qty = utils.RoundQty(qty)
	if qty <= 0 || qty >= st.Size {
		return 0, false
	}
	return qty, true
}

// reversalExit needs a reported confidence; a tick without one cannot trigger it.
func reversalExit(tc TickContext) bool {
	return tc.Phase.Blocking() && tc.Confidence != nil && *tc.Confidence < tc.Config.MinExitConfidence
}

// tightenStop moves the stop toward the position only.
func tightenStop(st *dto.PositionTrackState, candidate float64) float64 {
	if st.TrailStop <= 0 {
		return candidate
	}
	if st.Side == dto.SideShort {
		if candidate < st.TrailStop {
			return candidate
		}
		return st.TrailStop
	}
	if candidate > st.TrailStop {
		return candidate
	}
	return st.TrailStop
}

func exitAll(ctx context.Context, st *dto.PositionTrackState, reason dto.ExitReason, exec PolicyExecutor) bool {
	if err := exec.CloseAll(ctx, st, reason); err != nil {
		return false
	}
	st.Exited = true
	st.TrailActive = false
	st.ExitReason = reason
	st.LastAction = dto.ActionExitAll
	return true
}
