package contract

import (
	"context"
	"poseidon/internal/dto"
)

type ConfidenceContract interface {
	Calculate(snapshot dto.TASnapshot) dto.ConfidenceResult
}

type TrendPhaseContract interface {
	Detect(ctx context.Context, symbol string) dto.TrendPhase
}

// DecisionConsumer receives candidate records that passed every gate.
type DecisionConsumer interface {
	OnCandidate(ctx context.Context, record dto.SignalAnalysisRecord) error
}
