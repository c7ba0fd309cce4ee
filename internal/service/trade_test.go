package service

import (
	"context"
	"database/sql"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/utils"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockJournalRepo struct{ mock.Mock }

func (m *mockJournalRepo) Create(ctx context.Context, journal *model.TradeJournal, opts ...utils.DBOption) error {
	return m.Called(ctx, journal).Error(0)
}

func (m *mockJournalRepo) Update(ctx context.Context, journal *model.TradeJournal, opts ...utils.DBOption) error {
	return m.Called(ctx, journal).Error(0)
}

func (m *mockJournalRepo) FindOpenBySymbol(ctx context.Context, symbol string, opts ...utils.DBOption) (*model.TradeJournal, error) {
	args := m.Called(ctx, symbol)
	j, _ := args.Get(0).(*model.TradeJournal)
	return j, args.Error(1)
}

func (m *mockJournalRepo) Get(ctx context.Context, param *model.GetTradeJournalParam, opts ...utils.DBOption) ([]model.TradeJournal, error) {
	args := m.Called(ctx, param)
	j, _ := args.Get(0).([]model.TradeJournal)
	return j, args.Error(1)
}

// passthroughUoW runs the callback without a real transaction.
type passthroughUoW struct{ runs int }

func (u *passthroughUoW) Run(ctx context.Context, fn func(opts ...utils.DBOption) error) error {
	u.runs++
	return fn()
}

func tradeConfig() *config.Config {
	return &config.Config{
		Executor: config.Executor{Mode: "paper"},
		Scanner: config.Scanner{
			AutoExecute:      true,
			MarginPerTrade:   20,
			Leverage:         5,
			MaxOpenPositions: 2,
		},
	}
}

func candidate(symbol string, price, lot float64) dto.SignalAnalysisRecord {
	return dto.SignalAnalysisRecord{
		Symbol:     symbol,
		Signal:     dto.SignalBullish,
		Confidence: 82,
		Price:      price,
		LotSize:    lot,
	}
}

func TestTradeService_PlacesAndTracks(t *testing.T) {
	exec := &fakeExecutor{}
	m := metrics.New()
	tracker := newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{})
	journal := &mockJournalRepo{}
	journal.On("Create", mock.Anything, mock.MatchedBy(func(j *model.TradeJournal) bool {
		return j.Symbol == "SOLUSDTM" && j.Status == model.TradeStatusOpen
	})).Return(nil).Once()
	feed := &fakeFeed{}

	svc := NewTradeService(tradeConfig(), logger.NewNop(), exec, tracker, feed, m, journal, &passthroughUoW{})
	require.NoError(t, svc.OnCandidate(context.Background(), candidate("SOLUSDTM", 150, 0.1)))

	orders := exec.orderCalls()
	require.Len(t, orders, 1)
	assert.InDelta(t, 0.6, orders[0].Size, 1e-12)
	assert.Equal(t, dto.SideLong, orders[0].Side)
	assert.Equal(t, 5.0, orders[0].Leverage)

	st := tracker.GetStatus("SOLUSDTM")
	require.NotNil(t, st)
	require.NotNil(t, st.InitialMargin)
	assert.InDelta(t, 18, *st.InitialMargin, 1e-9)
	assert.InDelta(t, 82, *st.EntryConfidence, 1e-9)
	assert.Equal(t, 1, feed.count(dto.FeedOrderPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("paper", "long")))
	journal.AssertExpectations(t)

	// a second candidate for a tracked symbol is ignored
	require.NoError(t, svc.OnCandidate(context.Background(), candidate("SOLUSDTM", 151, 0.1)))
	assert.Len(t, exec.orderCalls(), 1)
}

func TestTradeService_ObserveOnly(t *testing.T) {
	exec := &fakeExecutor{}
	cfg := tradeConfig()
	cfg.Scanner.AutoExecute = false
	tracker := newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{})

	svc := NewTradeService(cfg, logger.NewNop(), exec, tracker, &fakeFeed{}, nil, nil, nil)
	require.NoError(t, svc.OnCandidate(context.Background(), candidate("SOLUSDTM", 150, 0.1)))
	assert.Empty(t, exec.orderCalls())
	assert.Empty(t, tracker.Symbols())
}

func TestTradeService_Gates(t *testing.T) {
	t.Run("max open positions", func(t *testing.T) {
		exec := &fakeExecutor{positions: []dto.OpenPosition{{Symbol: "AUSDTM", Size: 1}, {Symbol: "BUSDTM", Size: 1}}}
		feed := &fakeFeed{}
		svc := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, feed), feed, nil, nil, nil)

		err := svc.OnCandidate(context.Background(), candidate("SOLUSDTM", 150, 0.1))
		assert.ErrorIs(t, err, dto.ErrMaxOpenPositions)
		assert.Empty(t, exec.orderCalls())
		assert.Equal(t, 1, feed.count(dto.FeedOrderError))
	})

	t.Run("already open on the exchange", func(t *testing.T) {
		exec := &fakeExecutor{positions: []dto.OpenPosition{{Symbol: "SOLUSDTM", Size: 1}}}
		svc := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{}), &fakeFeed{}, nil, nil, nil)

		assert.NoError(t, svc.OnCandidate(context.Background(), candidate("SOLUSDTM", 150, 0.1)))
		assert.Empty(t, exec.orderCalls())
	})

	t.Run("margin too small for one lot", func(t *testing.T) {
		exec := &fakeExecutor{}
		svc := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{}), &fakeFeed{}, nil, nil, nil)

		err := svc.OnCandidate(context.Background(), candidate("XBTUSDTM", 60000, 0.01))
		assert.ErrorIs(t, err, dto.ErrInvalidQuantity)
		assert.Empty(t, exec.orderCalls())
	})

	t.Run("skipped record", func(t *testing.T) {
		exec := &fakeExecutor{}
		svc := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{}), &fakeFeed{}, nil, nil, nil)

		rec := candidate("SOLUSDTM", 150, 0.1)
		rec.Skipped = true
		assert.NoError(t, svc.OnCandidate(context.Background(), rec))
		assert.Empty(t, exec.orderCalls())
	})
}

func TestTradeService_RecordExit(t *testing.T) {
	exec := &fakeExecutor{}
	journal := &mockJournalRepo{}
	uow := &passthroughUoW{}
	open := &model.TradeJournal{ID: 7, Symbol: "SOLUSDTM", Status: model.TradeStatusOpen}
	journal.On("FindOpenBySymbol", mock.Anything, "SOLUSDTM").Return(open, nil)
	journal.On("Update", mock.Anything, mock.MatchedBy(func(j *model.TradeJournal) bool {
		return j.ID == 7 && j.Status == model.TradeStatusClosed && j.ExitReason.String == "trail_stop" && j.FiredSteps == 2
	})).Return(nil).Once()

	svc := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{}), &fakeFeed{}, nil, journal, uow)
	err := svc.RecordExit(context.Background(), &dto.PositionTrackState{
		Symbol: "SOLUSDTM", Exited: true, ExitReason: dto.ExitTrailStop, FiredSteps: 2, LastPrice: 160, LastRoi: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, uow.runs)
	assert.True(t, open.ExitPrice.Valid)
	assert.NotEmpty(t, open.State)
	journal.AssertExpectations(t)

	noDB := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{}), &fakeFeed{}, nil, nil, nil)
	assert.NoError(t, noDB.RecordExit(context.Background(), &dto.PositionTrackState{Symbol: "X"}))
}

func TestTradeService_Journal(t *testing.T) {
	exec := &fakeExecutor{}
	journal := &mockJournalRepo{}
	opened := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	journal.On("Get", mock.Anything, mock.MatchedBy(func(p *model.GetTradeJournalParam) bool {
		return p.Symbol != nil && *p.Symbol == "SOLUSDTM" && p.Status != nil && *p.Status == model.TradeStatusClosed && p.Limit != nil && *p.Limit == 10
	})).Return([]model.TradeJournal{{
		ID: 3, Symbol: "SOLUSDTM", Side: "long", Status: model.TradeStatusClosed, EntryPrice: 100,
		ExitPrice:  sql.NullFloat64{Float64: 130, Valid: true},
		FinalRoi:   sql.NullFloat64{Float64: 150, Valid: true},
		ExitReason: sql.NullString{String: "trail_stop", Valid: true},
		OpenedAt:   opened,
	}}, nil).Once()

	svc := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{}), &fakeFeed{}, nil, journal, &passthroughUoW{})
	entries, err := svc.Journal(context.Background(), dto.JournalQuery{Symbol: "SOLUSDTM", Status: "closed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dto.SideLong, entries[0].Side)
	assert.Equal(t, dto.ExitTrailStop, entries[0].ExitReason)
	require.NotNil(t, entries[0].ExitPrice)
	assert.Equal(t, 130.0, *entries[0].ExitPrice)
	assert.Nil(t, entries[0].ClosedAt)
	journal.AssertExpectations(t)

	noDB := NewTradeService(tradeConfig(), logger.NewNop(), exec, newTestTracker(t, dto.DefaultTpConfig(), exec, &fakeFeed{}), &fakeFeed{}, nil, nil, nil)
	entries, err = noDB.Journal(context.Background(), dto.JournalQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
