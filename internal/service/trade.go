package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"poseidon/config"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/internal/repository"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/utils"
	"strings"
	"sync"
)

type TradeService interface {
	contract.DecisionConsumer
	contract.ExitRecorder
	Journal(ctx context.Context, query dto.JournalQuery) ([]dto.TradeJournalEntry, error)
}

type tradeService struct {
	cfg        *config.Config
	log        *logger.Logger
	broker     contract.Broker
	tracker    *TpTracker
	feed       contract.FeedSink
	metrics    *metrics.Metrics
	journal    repository.TradeJournalRepository
	unitOfWork repository.UnitOfWork
	clock      utils.Clock

	// placement is serialized so the open-position cap cannot be raced past
	mu sync.Mutex
}

func NewTradeService(
	cfg *config.Config,
	log *logger.Logger,
	broker contract.Broker,
	tracker *TpTracker,
	feed contract.FeedSink,
	m *metrics.Metrics,
	journal repository.TradeJournalRepository,
	unitOfWork repository.UnitOfWork,
) TradeService {
	return &tradeService{
		cfg:        cfg,
		log:        log,
		broker:     broker,
		tracker:    tracker,
		feed:       feed,
		metrics:    m,
		journal:    journal,
		unitOfWork: unitOfWork,
		clock:      utils.SystemClock,
	}
}

// OnCandidate sizes and places an order for a passing record and starts tracking it.
func (s *tradeService) OnCandidate(ctx context.Context, record dto.SignalAnalysisRecord) error {
	if record.Skipped || !record.Signal.Directional() {
		return nil
	}
	if !s.cfg.Scanner.AutoExecute {
		s.log.InfoContext(ctx, "Auto execute disabled, candidate not traded",
			logger.StringField("symbol", record.Symbol),
			logger.FloatField("confidence", record.Confidence),
		)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.tracker.GetStatus(record.Symbol); st != nil && !st.Exited {
		return nil
	}

	positions, err := s.broker.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open positions: %w", err)
	}
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, record.Symbol) {
			return nil
		}
	}
	if limit := s.cfg.Scanner.MaxOpenPositions; limit > 0 && len(positions) >= limit {
		s.orderError(record.Symbol, dto.ErrMaxOpenPositions)
		return dto.ErrMaxOpenPositions
	}

	size := s.orderSize(record)
	if size <= 0 {
		s.orderError(record.Symbol, dto.ErrInvalidQuantity)
		return fmt.Errorf("%w: margin %.2f at price %s", dto.ErrInvalidQuantity, s.cfg.Scanner.MarginPerTrade, utils.FormatFloat(record.Price))
	}

	side := record.Signal.Side()
	placed, err := s.broker.PlaceOrder(ctx, dto.OrderRequest{
		Symbol:     record.Symbol,
		Side:       side,
		Size:       size,
		Leverage:   s.cfg.Scanner.Leverage,
		RefPrice:   record.Price,
		LotSize:    record.LotSize,
		MinSize:    record.LotSize,
		Confidence: record.Confidence,
	})
	if err != nil {
		s.orderError(record.Symbol, err)
		return fmt.Errorf("failed to place order for %s: %w", record.Symbol, err)
	}

	if s.metrics != nil {
		s.metrics.Orders.WithLabelValues(s.cfg.Executor.Mode, string(side)).Inc()
	}
	s.log.InfoContext(ctx, "Order placed",
		logger.StringField("symbol", placed.Symbol),
		logger.StringField("side", string(side)),
		logger.FloatField("entry", placed.EntryPrice),
		logger.FloatField("size", placed.Size),
		logger.FloatField("confidence", record.Confidence),
	)
	s.emit(dto.FeedEvent{
		Kind:   dto.FeedOrderPlaced,
		Level:  dto.LevelInfo,
		Symbol: placed.Symbol,
		Msg: fmt.Sprintf("opened %s %s size %s @ %s (confidence %.1f)",
			side, placed.Symbol, utils.FormatFloat(placed.Size), utils.FormatFloat(placed.EntryPrice), record.Confidence),
		Data: map[string]interface{}{
			"side":       string(side),
			"size":       placed.Size,
			"entry":      placed.EntryPrice,
			"margin":     placed.Margin,
			"confidence": record.Confidence,
		},
	})

	pos := dto.PositionOpen{
		Symbol:     placed.Symbol,
		Side:       side,
		EntryPrice: placed.EntryPrice,
		Size:       placed.Size,
		LotSize:    placed.LotSize,
		MinSize:    placed.MinSize,
		Confidence: utils.ToPointer(record.Confidence),
	}
	if placed.Margin > 0 {
		pos.InitialMargin = utils.ToPointer(placed.Margin)
	}
	s.tracker.Init(ctx, pos)

	if s.journal != nil {
		entry := &model.TradeJournal{
			Symbol:     placed.Symbol,
			Side:       string(side),
			Status:     model.TradeStatusOpen,
			EntryPrice: placed.EntryPrice,
			Size:       placed.Size,
			Margin:     placed.Margin,
			Confidence: record.Confidence,
			Policy:     string(s.tracker.Config().Policy),
			OpenedAt:   s.clock(),
		}
		if err := s.journal.Create(ctx, entry); err != nil {
			s.log.WarnContext(ctx, "Failed to journal opened trade", logger.StringField("symbol", placed.Symbol), logger.ErrorField(err))
		}
	}
	return nil
}

// orderSize converts the configured margin into a quantity floored to the lot.
func (s *tradeService) orderSize(record dto.SignalAnalysisRecord) float64 {
	if !utils.IsPositiveFinite(record.Price) || s.cfg.Scanner.MarginPerTrade <= 0 || s.cfg.Scanner.Leverage <= 0 {
		return 0
	}
	notional := s.cfg.Scanner.MarginPerTrade * s.cfg.Scanner.Leverage
	return utils.RoundQty(utils.FloorToLot(notional/record.Price, record.LotSize))
}

// RecordExit closes the open journal row for the state's symbol. Without a database it is a no-op.
func (s *tradeService) RecordExit(ctx context.Context, st *dto.PositionTrackState) error {
	if s.journal == nil || s.unitOfWork == nil || st == nil {
		return nil
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}

	return s.unitOfWork.Run(ctx, func(opts ...utils.DBOption) error {
		entry, err := s.journal.FindOpenBySymbol(ctx, st.Symbol, opts...)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		reason := st.ExitReason
		if reason == "" {
			reason = dto.ExitExternal
		}
		entry.Status = model.TradeStatusClosed
		entry.ExitPrice = sql.NullFloat64{Float64: st.LastPrice, Valid: st.LastPrice > 0}
		entry.FiredSteps = st.FiredSteps
		entry.MaxRoi = st.MaxRoi
		entry.FinalRoi = sql.NullFloat64{Float64: st.LastRoi, Valid: true}
		entry.ExitReason = sql.NullString{String: string(reason), Valid: true}
		entry.State = raw
		entry.ClosedAt = sql.NullTime{Time: s.clock(), Valid: true}
		return s.journal.Update(ctx, entry, opts...)
	})
}

// Journal lists journaled trades newest first. It is empty without a database.
func (s *tradeService) Journal(ctx context.Context, query dto.JournalQuery) ([]dto.TradeJournalEntry, error) {
	out := []dto.TradeJournalEntry{}
	if s.journal == nil {
		return out, nil
	}
	param := &model.GetTradeJournalParam{}
	if query.Symbol != "" {
		param.Symbol = utils.ToPointer(query.Symbol)
	}
	if query.Status != "" {
		param.Status = utils.ToPointer(model.TradeStatus(query.Status))
	}
	if query.Limit > 0 {
		param.Limit = utils.ToPointer(query.Limit)
	}

	rows, err := s.journal.Get(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to list trade journal: %w", err)
	}
	for _, row := range rows {
		entry := dto.TradeJournalEntry{
			ID:         row.ID,
			Symbol:     row.Symbol,
			Side:       dto.Side(row.Side),
			Status:     string(row.Status),
			Policy:     row.Policy,
			EntryPrice: row.EntryPrice,
			Size:       row.Size,
			Margin:     row.Margin,
			Confidence: row.Confidence,
			FiredSteps: row.FiredSteps,
			MaxRoi:     row.MaxRoi,
			ExitReason: dto.ExitReason(row.ExitReason.String),
			OpenedAt:   row.OpenedAt,
		}
		if row.ExitPrice.Valid {
			entry.ExitPrice = utils.ToPointer(row.ExitPrice.Float64)
		}
		if row.FinalRoi.Valid {
			entry.FinalRoi = utils.ToPointer(row.FinalRoi.Float64)
		}
		if row.ClosedAt.Valid {
			entry.ClosedAt = utils.ToPointer(row.ClosedAt.Time)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *tradeService) orderError(symbol string, err error) {
	s.log.Warn("Order not placed", logger.StringField("symbol", symbol), logger.ErrorField(err))
	ev := dto.FeedEvent{
		Kind:   dto.FeedOrderError,
		Level:  dto.LevelError,
		Symbol: symbol,
		Msg:    fmt.Sprintf("order for %s not placed: %v", symbol, err),
	}
	if throttled, ok := s.feed.(contract.ThrottledFeedSink); ok {
		throttled.EmitThrottled("order_error:"+symbol, s.cfg.Scanner.SkipCooldown, ev)
		return
	}
	s.emit(ev)
}

func (s *tradeService) emit(event dto.FeedEvent) {
	if s.feed != nil {
		s.feed.Emit(event)
	}
}
