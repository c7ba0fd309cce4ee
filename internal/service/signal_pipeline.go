package service

import (
	"context"
	"fmt"
	"math"
	"poseidon/config"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/pkg/common"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/utils"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	outcomeRejected  = "rejected"
	outcomeSkipped   = "skipped"
	outcomeCandidate = "candidate"

	skipWeakSignal   = "weak_signal"
	skipOpenPosition = "open_position"
	skipPositions    = "positions_unavailable"
	skipPhase        = "phase"
)

type SignalPipeline interface {
	// Evaluate runs the gates in order and returns nil when the symbol is rejected
	// before any analysis, or a record (possibly skipped) otherwise.
	Evaluate(ctx context.Context, symbol string, opts dto.EvaluateOptions) *dto.SignalAnalysisRecord
	SetActive(active bool)
	Active() bool
	SetConsumer(consumer contract.DecisionConsumer)
}

type signalPipeline struct {
	cfg       *config.Config
	log       *logger.Logger
	scanner   contract.ScannerSource
	ta        contract.TASource
	scorer    contract.ConfidenceContract
	phase     contract.TrendPhaseContract
	positions contract.PositionSource
	feed      contract.FeedSink
	metrics   *metrics.Metrics
	clock     utils.Clock
	denylist  []*regexp.Regexp

	active     atomic.Bool
	consumerMu sync.RWMutex
	consumer   contract.DecisionConsumer
}

func NewSignalPipeline(
	cfg *config.Config,
	log *logger.Logger,
	scanner contract.ScannerSource,
	ta contract.TASource,
	scorer contract.ConfidenceContract,
	phase contract.TrendPhaseContract,
	positions contract.PositionSource,
	feed contract.FeedSink,
	m *metrics.Metrics,
) (SignalPipeline, error) {
	denylist, err := compileDenylist(cfg.Scanner.Denylist)
	if err != nil {
		return nil, fmt.Errorf("invalid scanner.denylist: %w", err)
	}
	p := &signalPipeline{
		cfg:       cfg,
		log:       log,
		scanner:   scanner,
		ta:        ta,
		scorer:    scorer,
		phase:     phase,
		positions: positions,
		feed:      feed,
		metrics:   m,
		clock:     utils.SystemClock,
		denylist:  denylist,
	}
	p.active.Store(cfg.Scanner.Active)
	return p, nil
}

func (p *signalPipeline) SetActive(active bool) {
	p.active.Store(active)
}

func (p *signalPipeline) Active() bool {
	return p.active.Load()
}

func (p *signalPipeline) SetConsumer(consumer contract.DecisionConsumer) {
	p.consumerMu.Lock()
	defer p.consumerMu.Unlock()
	p.consumer = consumer
}

func (p *signalPipeline) Evaluate(ctx context.Context, input string, opts dto.EvaluateOptions) *dto.SignalAnalysisRecord {
	if !opts.Manual && !p.Active() {
		return p.reject(ctx, input, "bot inactive")
	}

	base, symbol, ok := NormalizeSymbol(input)
	if !ok || denied(p.denylist, base) {
		return p.reject(ctx, input, "malformed or denied symbol")
	}

	row, err := p.scanner.FindRow(ctx, base)
	if err != nil {
		p.log.WarnContext(ctx, "Scanner lookup failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		return p.reject(ctx, symbol, "scanner unavailable")
	}
	if row == nil {
		return p.reject(ctx, symbol, "no scanner row")
	}
	if row.Symbol != "" {
		symbol = row.Symbol
	}

	if !utils.IsPositiveFinite(row.Price) {
		return p.reject(ctx, symbol, "invalid price")
	}
	if !utils.IsPositiveFinite(row.QuoteVolume) {
		return p.reject(ctx, symbol, "invalid volume")
	}
	category := p.categorize(base, row)
	exempt := category == dto.CategoryMajor || category == dto.CategoryMeme
	if !exempt && p.cfg.Scanner.MaxQuoteVolume > 0 && row.QuoteVolume >= p.cfg.Scanner.MaxQuoteVolume {
		return p.reject(ctx, symbol, fmt.Sprintf("volume %.0f above cap", row.QuoteVolume))
	}

	ta := p.ta.GetTA(ctx, symbol)
	if ta == nil {
		return p.reject(ctx, symbol, "no TA snapshot")
	}
	// the snapshot may be shared through the cache
	snap := *ta
	snap.Category = category

	score := p.scorer.Calculate(snap)
	record := &dto.SignalAnalysisRecord{
		Symbol:      symbol,
		Signal:      snap.Signal,
		Confidence:  score.Score,
		RSI:         snap.RSI,
		MACDSignal:  snap.MACDSignal,
		BBSignal:    snap.BBSignal,
		Volume:      row.QuoteVolume,
		Price:       row.Price,
		TrapWarning: snap.TrapWarning,
		VolumeSpike: snap.VolumeSpike,
		Category:    category,
		Manual:      opts.Manual,
		LotSize:     lotSize(row),
		EvaluatedAt: p.clock(),
	}

	if !snap.Signal.Directional() || score.Score < p.cfg.Scanner.MinConfidence {
		return p.skip(ctx, record, skipWeakSignal, fmt.Sprintf("%s %s confidence %.1f", symbol, snap.Signal, score.Score))
	}

	if !opts.Manual && p.positions != nil {
		open, err := p.hasOpenPosition(ctx, symbol)
		if err != nil {
			p.log.WarnContext(ctx, "Open positions unavailable", logger.StringField("symbol", symbol), logger.ErrorField(err))
			return p.skip(ctx, record, skipPositions, fmt.Sprintf("%s positions unavailable", symbol))
		}
		if open {
			record.OpenPosition = true
			return p.skip(ctx, record, skipOpenPosition, fmt.Sprintf("%s already has an open position", symbol))
		}
	}

	if p.phase != nil {
		tp := p.phase.Detect(ctx, symbol)
		record.Phase = tp.Phase
		if tp.Phase.Blocking() {
			return p.skip(ctx, record, skipPhase, fmt.Sprintf("%s in %s phase (%s)", symbol, tp.Phase, tp.Reason))
		}
	}

	p.count(outcomeCandidate)
	p.emit(dto.FeedEvent{
		Kind:   dto.FeedSignalCandidate,
		Level:  dto.LevelInfo,
		Symbol: symbol,
		Msg:    fmt.Sprintf("%s %s candidate, confidence %.1f", symbol, record.Signal, record.Confidence),
		Data: map[string]interface{}{
			"confidence": record.Confidence,
			"signal":     string(record.Signal),
			"phase":      string(record.Phase),
			"category":   string(record.Category),
			"breakdown":  score.Breakdown,
			"manual":     opts.Manual,
		},
	})

	p.consumerMu.RLock()
	consumer := p.consumer
	p.consumerMu.RUnlock()
	if consumer != nil {
		if err := consumer.OnCandidate(ctx, *record); err != nil {
			p.log.WarnContext(ctx, "Candidate consumer failed", logger.StringField("symbol", symbol), logger.ErrorField(err))
		}
	}
	return record
}

func (p *signalPipeline) categorize(base string, row *dto.ScannerRow) dto.Category {
	switch {
	case utils.ContainsFold(p.cfg.Scanner.Majors, base), utils.ContainsFold(p.cfg.Scanner.Majors, row.BaseCurrency):
		return dto.CategoryMajor
	case utils.ContainsFold(p.cfg.Scanner.Memes, base), utils.ContainsFold(p.cfg.Scanner.Memes, row.BaseCurrency):
		return dto.CategoryMeme
	case p.cfg.Scanner.MoverChangePct > 0 && math.Abs(row.ChangePct24h) >= p.cfg.Scanner.MoverChangePct:
		return dto.CategoryMover
	}
	return dto.CategoryRegular
}

func (p *signalPipeline) hasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	positions, err := p.positions.ListOpenPositions(ctx)
	if err != nil {
		return false, err
	}
	for _, pos := range positions {
		if strings.EqualFold(pos.Symbol, symbol) && pos.Size != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (p *signalPipeline) reject(ctx context.Context, symbol, reason string) *dto.SignalAnalysisRecord {
	p.count(outcomeRejected)
	p.log.DebugContext(ctx, "Signal rejected", logger.StringField("symbol", symbol), logger.StringField("reason", reason))
	p.emitThrottled(fmt.Sprintf(common.KEY_FEED_THROTTLE, symbol, reason), dto.FeedEvent{
		Kind:   dto.FeedSignalReject,
		Level:  dto.LevelInfo,
		Symbol: symbol,
		Msg:    fmt.Sprintf("%s rejected: %s", symbol, reason),
	})
	return nil
}

func (p *signalPipeline) skip(ctx context.Context, record *dto.SignalAnalysisRecord, reason, msg string) *dto.SignalAnalysisRecord {
	record.Skipped = true
	record.SkipReason = reason
	p.count(outcomeSkipped)
	p.log.DebugContext(ctx, "Signal skipped", logger.StringField("symbol", record.Symbol), logger.StringField("reason", reason))
	p.emitThrottled(fmt.Sprintf(common.KEY_FEED_THROTTLE, record.Symbol, reason), dto.FeedEvent{
		Kind:   dto.FeedSignalSkip,
		Level:  dto.LevelInfo,
		Symbol: record.Symbol,
		Msg:    msg,
		Data: map[string]interface{}{
			"reason":     reason,
			"confidence": record.Confidence,
			"phase":      string(record.Phase),
		},
	})
	return record
}

func (p *signalPipeline) count(outcome string) {
	if p.metrics != nil {
		p.metrics.Decisions.WithLabelValues(outcome).Inc()
	}
}

func (p *signalPipeline) emit(event dto.FeedEvent) {
	if p.feed != nil {
		p.feed.Emit(event)
	}
}

func (p *signalPipeline) emitThrottled(key string, event dto.FeedEvent) {
	if throttled, ok := p.feed.(contract.ThrottledFeedSink); ok {
		throttled.EmitThrottled(key, p.cfg.Scanner.SkipCooldown, event)
		return
	}
	p.emit(event)
}

// lotSize is the tradable quantity step in base units.
func lotSize(row *dto.ScannerRow) float64 {
	lot := row.LotSize
	if lot <= 0 {
		lot = 1
	}
	if row.Multiplier > 0 {
		return lot * row.Multiplier
	}
	return lot
}
