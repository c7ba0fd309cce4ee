package contract

import (
	"context"
	"poseidon/internal/dto"
)

// TrackerContract is the part of the take-profit tracker the scheduled jobs drive.
type TrackerContract interface {
	Symbols() []string
	GetStatus(symbol string) *dto.PositionTrackState
	Update(ctx context.Context, tick dto.PriceTick) error
	MarkExited(ctx context.Context, symbol string, reason dto.ExitReason) error
	Reset(ctx context.Context, symbol string) bool
}

type SignalEvaluator interface {
	Evaluate(ctx context.Context, symbol string, opts dto.EvaluateOptions) *dto.SignalAnalysisRecord
}

// ExitRecorder closes the journal entry of a position the tracker has exited.
type ExitRecorder interface {
	RecordExit(ctx context.Context, state *dto.PositionTrackState) error
}
