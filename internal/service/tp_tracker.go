package service

import (
	"context"
	"errors"
	"fmt"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/internal/repository"
	"poseidon/pkg/keylock"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/utils"
	"sort"
	"strings"
	"sync"
	"time"

	goValidator "github.com/go-playground/validator/v10"
)

// TpTracker owns the exit state of every open position. Ticks for the same symbol
// are serialized; different symbols proceed independently.
type TpTracker struct {
	log       *logger.Logger
	executor  contract.Executor
	feed      contract.FeedSink
	stateRepo repository.TrackerStateRepository
	metrics   *metrics.Metrics
	clock     utils.Clock
	locks     *keylock.KeyedMutex
	validate  *goValidator.Validate
	policies  map[dto.ExitPolicyName]ExitPolicy

	mu    sync.RWMutex
	store map[string]*dto.PositionTrackState

	cfgMu sync.RWMutex
	cfg   dto.TpConfig
	steps []dto.TPStep
}

type TrackerOption func(*TpTracker)

func WithStateRepository(repo repository.TrackerStateRepository) TrackerOption {
	return func(t *TpTracker) { t.stateRepo = repo }
}

func WithTrackerMetrics(m *metrics.Metrics) TrackerOption {
	return func(t *TpTracker) { t.metrics = m }
}

func WithTrackerClock(clock utils.Clock) TrackerOption {
	return func(t *TpTracker) { t.clock = clock }
}

func NewTpTracker(cfg dto.TpConfig, log *logger.Logger, executor contract.Executor, feed contract.FeedSink, opts ...TrackerOption) (*TpTracker, error) {
	t := &TpTracker{
		log:      log,
		executor: executor,
		feed:     feed,
		clock:    utils.SystemClock,
		locks:    keylock.New(),
		validate: goValidator.New(),
		policies: map[dto.ExitPolicyName]ExitPolicy{
			dto.PolicyLadder: LadderTrailPolicy{},
			dto.PolicySingle: SinglePartialPolicy{},
		},
		store: make(map[string]*dto.PositionTrackState),
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.SetConfig(cfg); err != nil {
		return nil, err
	}
	return t, nil
}

// SetConfig validates and swaps the configuration. Ticks in flight keep the config they started with.
func (t *TpTracker) SetConfig(cfg dto.TpConfig) error {
	if cfg.Policy == "" {
		cfg.Policy = dto.PolicyLadder
	}
	if cfg.MarginFallbackRatio == 0 {
		cfg.MarginFallbackRatio = dto.DefaultMarginFallbackRatio
	}
	if err := t.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", dto.ErrInvalidConfig, err)
	}
	steps := cfg.ResolvedSteps()
	if cfg.Policy == dto.PolicyLadder && len(steps) == 0 {
		return fmt.Errorf("%w: ladder policy needs steps or step_pct/take_fraction/max_steps", dto.ErrInvalidConfig)
	}
	if cfg.Policy == dto.PolicySingle && (cfg.PartialTriggerRoi <= 0 || cfg.PartialTakeFraction <= 0) {
		return fmt.Errorf("%w: single policy needs partial_trigger_roi and partial_take_fraction", dto.ErrInvalidConfig)
	}
	if _, ok := t.policies[cfg.Policy]; !ok {
		return fmt.Errorf("%w: unknown policy %q", dto.ErrInvalidConfig, cfg.Policy)
	}
	if len(cfg.Steps) > 0 {
		cfg.Steps = steps
	}

	t.cfgMu.Lock()
	t.cfg = cfg
	t.steps = steps
	t.cfgMu.Unlock()
	return nil
}

func (t *TpTracker) Config() dto.TpConfig {
	t.cfgMu.RLock()
	defer t.cfgMu.RUnlock()
	cfg := t.cfg
	cfg.Steps = append([]dto.TPStep(nil), t.cfg.Steps...)
	return cfg
}

func (t *TpTracker) snapshotConfig() (dto.TpConfig, []dto.TPStep) {
	t.cfgMu.RLock()
	defer t.cfgMu.RUnlock()
	return t.cfg, t.steps
}

// Init starts tracking a newly opened position. It returns false without effect when the
// symbol is already tracked or the position lacks symbol, entry price or size.
func (t *TpTracker) Init(ctx context.Context, pos dto.PositionOpen) bool {
	symbol := strings.TrimSpace(pos.Symbol)
	if symbol == "" || !utils.IsPositiveFinite(pos.EntryPrice) || !utils.IsPositiveFinite(pos.Size) {
		return false
	}
	unlock, err := t.locks.Lock(ctx, symbol)
	if err != nil {
		return false
	}
	defer unlock()

	if t.get(symbol) != nil {
		return false
	}

	side := pos.Side
	if !side.Valid() {
		side = dto.SideLong
	}
	cfg, _ := t.snapshotConfig()
	now := t.clock()
	st := &dto.PositionTrackState{
		Symbol:       symbol,
		Side:         side,
		Policy:       cfg.Policy,
		EntryPrice:   pos.EntryPrice,
		Size:         pos.Size,
		OriginalSize: pos.Size,
		LotSize:      pos.LotSize,
		MinSize:      pos.MinSize,
		LastAction:   dto.ActionNone,
		LastPrice:    pos.EntryPrice,
		OpenedAt:     now,
		UpdatedAt:    now,
	}
	if pos.InitialMargin != nil && utils.IsPositiveFinite(*pos.InitialMargin) {
		st.InitialMargin = utils.ToPointer(*pos.InitialMargin)
	}
	if pos.Confidence != nil {
		st.EntryConfidence = utils.ToPointer(*pos.Confidence)
	}
	st.TrailDrop = cfg.EffectiveTrailDrop(1)

	t.commit(ctx, st)
	t.log.InfoContext(ctx, "Tracking position",
		logger.StringField("symbol", symbol),
		logger.StringField("side", string(side)),
		logger.FloatField("entry", st.EntryPrice),
		logger.FloatField("size", st.Size),
		logger.StringField("policy", string(st.Policy)),
	)
	t.emit(dto.FeedEvent{
		Kind:   dto.FeedTPStatus,
		Level:  dto.LevelInfo,
		Symbol: symbol,
		Msg:    fmt.Sprintf("tracking %s %s size %s @ %s", side, symbol, utils.FormatFloat(st.Size), utils.FormatFloat(st.EntryPrice)),
		Data:   map[string]interface{}{"policy": string(st.Policy), "margin": st.BaseMargin(cfg.MarginFallbackRatio)},
	})
	return true
}

// Update runs one tick. Untracked or exited symbols and non-positive prices are ignored.
// The only error is a context that ended while waiting for the symbol.
func (t *TpTracker) Update(ctx context.Context, tick dto.PriceTick) error {
	symbol := strings.TrimSpace(tick.Symbol)
	if symbol == "" || !utils.IsPositiveFinite(tick.CurrentPrice) {
		return nil
	}
	unlock, err := t.locks.Lock(ctx, symbol)
	if err != nil {
		return err
	}
	defer unlock()

	current := t.get(symbol)
	if current == nil || current.Exited {
		return nil
	}

	cfg, steps := t.snapshotConfig()
	policy, ok := t.policies[current.Policy]
	if !ok {
		policy = t.policies[cfg.Policy]
	}

	st := current.Clone()
	price := tick.CurrentPrice
	exec := &trackerExec{t: t, cfg: cfg}
	if st.PendingQty > 0 && !t.reconcile(ctx, st, policy, exec, TickContext{
		Price:  price,
		Roi:    st.Roi(price, cfg.MarginFallbackRatio),
		Config: cfg,
		Steps:  steps,
	}) {
		// hold until the exchange says whether the timed out close went through
		st.LastPrice = price
		st.UpdatedAt = t.clock()
		t.commit(ctx, st)
		return nil
	}

	roi := st.Roi(price, cfg.MarginFallbackRatio)
	st.LastPnl = st.Pnl(price)
	st.LastRoi = roi
	st.LastPrice = price
	if roi > st.MaxRoi {
		st.MaxRoi = roi
	}

	policy.Apply(ctx, st, TickContext{
		Price:      price,
		Roi:        roi,
		Confidence: tick.Confidence,
		Phase:      tick.TrendPhase,
		Config:     cfg,
		Steps:      steps,
	}, exec)

	now := t.clock()
	st.UpdatedAt = now
	if !exec.discrete && now.Sub(st.LastEmitAt) >= cfg.EmitThrottle {
		st.LastEmitAt = now
		t.emit(dto.FeedEvent{
			Kind:   dto.FeedTPStatus,
			Level:  dto.LevelInfo,
			Symbol: symbol,
			Msg:    statusLine(st),
			Data: map[string]interface{}{
				"roi":          roi,
				"max_roi":      st.MaxRoi,
				"size":         st.Size,
				"fired_steps":  st.FiredSteps,
				"trail_active": st.TrailActive,
				"trail_stop":   st.TrailStop,
			},
		})
	}
	t.commit(ctx, st)
	return nil
}

// GetStatus returns a copy of the symbol's state, or nil when untracked.
func (t *TpTracker) GetStatus(symbol string) *dto.PositionTrackState {
	return t.get(symbol).Clone()
}

func (t *TpTracker) List() []*dto.PositionTrackState {
	t.mu.RLock()
	out := make([]*dto.PositionTrackState, 0, len(t.store))
	for _, st := range t.store {
		out = append(out, st.Clone())
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (t *TpTracker) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.store))
	for symbol := range t.store {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// MarkExited flags the position as closed elsewhere. Calling it again changes nothing.
func (t *TpTracker) MarkExited(ctx context.Context, symbol string, reason dto.ExitReason) error {
	unlock, err := t.locks.Lock(ctx, symbol)
	if err != nil {
		return err
	}
	defer unlock()

	current := t.get(symbol)
	if current == nil {
		return dto.ErrNotTracked
	}
	if current.Exited {
		return nil
	}
	st := current.Clone()
	st.Exited = true
	st.TrailActive = false
	if reason == "" {
		reason = dto.ExitManual
	}
	st.ExitReason = reason
	st.UpdatedAt = t.clock()
	t.commit(ctx, st)
	return nil
}

// Reset drops all state for the symbol and reports whether it was tracked.
func (t *TpTracker) Reset(ctx context.Context, symbol string) bool {
	unlock, err := t.locks.Lock(ctx, symbol)
	if err != nil {
		return false
	}
	defer unlock()

	t.mu.Lock()
	_, existed := t.store[symbol]
	delete(t.store, symbol)
	size := len(t.store)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.TrackedPositions.Set(float64(size))
	}
	if t.stateRepo != nil {
		if err := t.stateRepo.Delete(symbol); err != nil {
			t.log.WarnContext(ctx, "Failed to delete tracker snapshot", logger.StringField("symbol", symbol), logger.ErrorField(err))
		}
	}
	return existed
}

// Restore reloads persisted snapshots. Exited snapshots are discarded.
func (t *TpTracker) Restore(ctx context.Context) (int, error) {
	if t.stateRepo == nil {
		return 0, nil
	}
	states, err := t.stateRepo.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to load tracker snapshots: %w", err)
	}

	restored := 0
	for _, st := range states {
		if st.Exited || st.Symbol == "" {
			_ = t.stateRepo.Delete(st.Symbol)
			continue
		}
		t.mu.Lock()
		if _, exists := t.store[st.Symbol]; !exists {
			t.store[st.Symbol] = st
			restored++
		}
		t.mu.Unlock()
	}
	if t.metrics != nil {
		t.metrics.TrackedPositions.Set(float64(len(t.Symbols())))
	}
	t.log.InfoContext(ctx, "Tracker state restored", logger.IntField("positions", restored))
	return restored, nil
}

func (t *TpTracker) get(symbol string) *dto.PositionTrackState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store[symbol]
}

func (t *TpTracker) commit(ctx context.Context, st *dto.PositionTrackState) {
	t.mu.Lock()
	t.store[st.Symbol] = st
	size := len(t.store)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.TrackedPositions.Set(float64(size))
	}
	if t.stateRepo != nil {
		if err := t.stateRepo.Save(st); err != nil {
			t.log.WarnContext(ctx, "Failed to persist tracker snapshot", logger.StringField("symbol", st.Symbol), logger.ErrorField(err))
		}
	}
}

func (t *TpTracker) emit(event dto.FeedEvent) {
	if t.feed != nil {
		t.feed.Emit(event)
	}
}

func (t *TpTracker) emitThrottled(key string, cooldown time.Duration, event dto.FeedEvent) {
	if throttled, ok := t.feed.(contract.ThrottledFeedSink); ok {
		throttled.EmitThrottled(key, cooldown, event)
		return
	}
	t.emit(event)
}

// reconcile resolves a partial close that timed out against the size the exchange
// reports. It returns false while the outcome is still unknown.
func (t *TpTracker) reconcile(ctx context.Context, st *dto.PositionTrackState, policy ExitPolicy, exec *trackerExec, tc TickContext) bool {
	source, ok := t.executor.(contract.PositionSource)
	if !ok {
		st.PendingQty = 0
		return true
	}

	var positions []dto.OpenPosition
	err := t.callExecutor(ctx, tc.Config.ExecutorTimeout, func(ctx context.Context) error {
		var err error
		positions, err = source.ListOpenPositions(ctx)
		return err
	})
	if err != nil {
		t.log.WarnContext(ctx, "Cannot reconcile timed out partial close", logger.StringField("symbol", st.Symbol), logger.ErrorField(err))
		return false
	}

	for _, p := range positions {
		if !strings.EqualFold(p.Symbol, st.Symbol) {
			continue
		}
		qty := st.PendingQty
		st.PendingQty = 0
		if utils.RoundQty(p.Size) <= utils.RoundQty(st.Size-qty) {
			t.log.InfoContext(ctx, "Timed out partial close was filled", logger.StringField("symbol", st.Symbol), logger.FloatField("qty", qty))
			policy.Settle(st, tc, qty)
			exec.StepFired(st, qty, tc.Roi)
		}
		return true
	}
	// a missing position is an external close, which the monitor handles
	return false
}

// callExecutor bounds fn by timeout. A call that outlives it counts as failed.
func (t *TpTracker) callExecutor(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("executor panic: %v", r)
			}
		}()
		done <- fn(cctx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", dto.ErrExecutorTimeout, err)
		}
		return err
	case <-cctx.Done():
		return fmt.Errorf("%w after %s", dto.ErrExecutorTimeout, timeout)
	}
}

func statusLine(st *dto.PositionTrackState) string {
	line := fmt.Sprintf("%s roi %s (max %s) size %s steps %d",
		st.Symbol, utils.FormatPercentage(st.LastRoi), utils.FormatPercentage(st.MaxRoi), utils.FormatFloat(st.Size), st.FiredSteps)
	if st.TrailActive {
		line += fmt.Sprintf(" trail %s/%s", utils.FormatFloat(st.PeakPrice), utils.FormatFloat(st.TrailStop))
	}
	return line
}

// trackerExec adapts the executor for one tick: timeout, failure reporting, metrics.
type trackerExec struct {
	t        *TpTracker
	cfg      dto.TpConfig
	discrete bool
}

func (e *trackerExec) PartialClose(ctx context.Context, st *dto.PositionTrackState, qty float64) error {
	symbol := st.Symbol
	err := e.t.callExecutor(ctx, e.cfg.ExecutorTimeout, func(ctx context.Context) error {
		return e.t.executor.PartialClose(ctx, symbol, qty)
	})
	if err != nil {
		e.failed(ctx, st, "partial_close", err, map[string]interface{}{"qty": qty, "step": st.FiredSteps + 1})
		// the call may still land on the exchange; the next tick checks before sending again
		if errors.Is(err, dto.ErrExecutorTimeout) {
			st.PendingQty = qty
		}
	}
	return err
}

func (e *trackerExec) CloseAll(ctx context.Context, st *dto.PositionTrackState, reason dto.ExitReason) error {
	symbol := st.Symbol
	err := e.t.callExecutor(ctx, e.cfg.ExecutorTimeout, func(ctx context.Context) error {
		return e.t.executor.CloseAll(ctx, symbol)
	})
	if err != nil {
		e.failed(ctx, st, "close_all", err, map[string]interface{}{"reason": string(reason)})
		return err
	}

	e.discrete = true
	if e.t.metrics != nil {
		e.t.metrics.Exits.WithLabelValues(string(reason), string(st.Side)).Inc()
	}
	e.t.log.InfoContext(ctx, "Position exited",
		logger.StringField("symbol", st.Symbol),
		logger.StringField("reason", string(reason)),
		logger.FloatField("price", st.LastPrice),
		logger.FloatField("roi", st.LastRoi),
	)
	e.t.emit(dto.FeedEvent{
		Kind:   dto.FeedTPExit,
		Level:  dto.LevelInfo,
		Symbol: st.Symbol,
		Msg:    fmt.Sprintf("exit %s (%s) at %s roi %s", st.Symbol, reason, utils.FormatFloat(st.LastPrice), utils.FormatPercentage(st.LastRoi)),
		Data: map[string]interface{}{
			"reason":     string(reason),
			"price":      st.LastPrice,
			"roi":        st.LastRoi,
			"max_roi":    st.MaxRoi,
			"size":       st.Size,
			"trail_stop": st.TrailStop,
		},
	})
	return nil
}

func (e *trackerExec) StepFired(st *dto.PositionTrackState, qty float64, roi float64) {
	e.discrete = true
	if e.t.metrics != nil {
		e.t.metrics.TPSteps.WithLabelValues(string(st.Policy)).Inc()
	}
	e.t.emit(dto.FeedEvent{
		Kind:   dto.FeedTPStep,
		Level:  dto.LevelInfo,
		Symbol: st.Symbol,
		Msg:    fmt.Sprintf("step %d: closed %s of %s at roi %s", st.FiredSteps, utils.FormatFloat(qty), st.Symbol, utils.FormatPercentage(roi)),
		Data: map[string]interface{}{
			"step":       st.FiredSteps,
			"qty":        qty,
			"remaining":  st.Size,
			"roi":        roi,
			"trail_stop": st.TrailStop,
			"trail_drop": st.TrailDrop,
		},
	})
}

func (e *trackerExec) failed(ctx context.Context, st *dto.PositionTrackState, op string, err error, data map[string]interface{}) {
	if e.t.metrics != nil {
		e.t.metrics.ExecutorFailures.WithLabelValues(op).Inc()
	}
	e.t.log.WarnContext(ctx, "Executor call failed",
		logger.StringField("symbol", st.Symbol),
		logger.StringField("op", op),
		logger.ErrorField(err),
	)
	data["error"] = err.Error()
	e.t.emitThrottled(fmt.Sprintf("tp_error:%s:%s", st.Symbol, op), e.cfg.EmitThrottle, dto.FeedEvent{
		Kind:   dto.FeedTPError,
		Level:  dto.LevelError,
		Symbol: st.Symbol,
		Msg:    fmt.Sprintf("%s failed for %s: %v", op, st.Symbol, err),
		Data:   data,
	})
}
