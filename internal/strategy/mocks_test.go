package strategy

import (
	"context"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/pkg/utils"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockScanner struct{ mock.Mock }

func (m *mockScanner) GetScannerRows(ctx context.Context) ([]dto.ScannerRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]dto.ScannerRow)
	return rows, args.Error(1)
}

func (m *mockScanner) FindRow(ctx context.Context, base string) (*dto.ScannerRow, error) {
	args := m.Called(ctx, base)
	row, _ := args.Get(0).(*dto.ScannerRow)
	return row, args.Error(1)
}

type mockEvaluator struct{ mock.Mock }

func (m *mockEvaluator) Evaluate(ctx context.Context, symbol string, opts dto.EvaluateOptions) *dto.SignalAnalysisRecord {
	rec, _ := m.Called(ctx, symbol, opts).Get(0).(*dto.SignalAnalysisRecord)
	return rec
}

type mockPositions struct{ mock.Mock }

func (m *mockPositions) ListOpenPositions(ctx context.Context) ([]dto.OpenPosition, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).([]dto.OpenPosition)
	return p, args.Error(1)
}

type mockPrices struct{ mock.Mock }

func (m *mockPrices) GetTicker(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

type mockTA struct{ mock.Mock }

func (m *mockTA) GetTA(ctx context.Context, symbol string) *dto.TASnapshot {
	snap, _ := m.Called(ctx, symbol).Get(0).(*dto.TASnapshot)
	return snap
}

type mockScorer struct{ mock.Mock }

func (m *mockScorer) Calculate(snapshot dto.TASnapshot) dto.ConfidenceResult {
	return m.Called(snapshot).Get(0).(dto.ConfidenceResult)
}

type mockPhase struct{ mock.Mock }

func (m *mockPhase) Detect(ctx context.Context, symbol string) dto.TrendPhase {
	return m.Called(ctx, symbol).Get(0).(dto.TrendPhase)
}

type mockExits struct{ mock.Mock }

func (m *mockExits) RecordExit(ctx context.Context, st *dto.PositionTrackState) error {
	return m.Called(ctx, st.Symbol, st.ExitReason).Error(0)
}

// fakeTracker exits a position when a tick reaches exitAt.
type fakeTracker struct {
	mu     sync.Mutex
	states map[string]*dto.PositionTrackState
	ticks  []dto.PriceTick
	exitAt float64
}

func newFakeTracker(states ...*dto.PositionTrackState) *fakeTracker {
	t := &fakeTracker{states: map[string]*dto.PositionTrackState{}}
	for _, st := range states {
		t.states[st.Symbol] = st
	}
	return t
}

func (t *fakeTracker) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.states))
	for s := range t.states {
		out = append(out, s)
	}
	return out
}

func (t *fakeTracker) GetStatus(symbol string) *dto.PositionTrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[symbol]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

func (t *fakeTracker) Update(ctx context.Context, tick dto.PriceTick) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks = append(t.ticks, tick)
	st := t.states[tick.Symbol]
	st.LastPrice = tick.CurrentPrice
	st.LastRoi = (tick.CurrentPrice - st.EntryPrice) / st.EntryPrice * 100
	if t.exitAt > 0 && tick.CurrentPrice >= t.exitAt {
		st.Exited = true
		st.ExitReason = dto.ExitTrailStop
	}
	return nil
}

func (t *fakeTracker) MarkExited(ctx context.Context, symbol string, reason dto.ExitReason) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[symbol]
	if !ok {
		return dto.ErrNotTracked
	}
	st.Exited = true
	st.ExitReason = reason
	return nil
}

func (t *fakeTracker) Reset(ctx context.Context, symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.states[symbol]
	delete(t.states, symbol)
	return ok
}

func (t *fakeTracker) recordedTicks() []dto.PriceTick {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]dto.PriceTick(nil), t.ticks...)
}

type mockFeedEventRepo struct{ mock.Mock }

func (m *mockFeedEventRepo) Create(ctx context.Context, event *model.FeedEvent, opts ...utils.DBOption) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockFeedEventRepo) Recent(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.FeedEvent, error) {
	args := m.Called(ctx, limit)
	ev, _ := args.Get(0).([]model.FeedEvent)
	return ev, args.Error(1)
}

func (m *mockFeedEventRepo) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

type mockJobRepo struct{ mock.Mock }

func (m *mockJobRepo) CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) GetTaskExecutionHistory(ctx context.Context, jobName string, limit int, opts ...utils.DBOption) ([]model.TaskExecutionHistory, error) {
	args := m.Called(ctx, jobName, limit)
	h, _ := args.Get(0).([]model.TaskExecutionHistory)
	return h, args.Error(1)
}

func (m *mockJobRepo) DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

type passthroughUoW struct{ runs int }

func (u *passthroughUoW) Run(ctx context.Context, fn func(opts ...utils.DBOption) error) error {
	u.runs++
	return fn()
}
