package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"poseidon/config"
	"poseidon/internal/contract"
	"poseidon/internal/dto"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type PositionMonitorResult struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price,omitempty"`
	Roi        float64 `json:"roi"`
	Phase      string  `json:"phase,omitempty"`
	ExitReason string  `json:"exit_reason,omitempty"`
	Errors     string  `json:"errors,omitempty"`
}

type PositionMonitorStrategy struct {
	cfg       *config.Config
	log       *logger.Logger
	tracker   contract.TrackerContract
	positions contract.PositionSource
	prices    contract.PriceSource
	ta        contract.TASource
	scorer    contract.ConfidenceContract
	phase     contract.TrendPhaseContract
	exits     contract.ExitRecorder
}

func NewPositionMonitorStrategy(
	cfg *config.Config,
	log *logger.Logger,
	tracker contract.TrackerContract,
	positions contract.PositionSource,
	prices contract.PriceSource,
	ta contract.TASource,
	scorer contract.ConfidenceContract,
	phase contract.TrendPhaseContract,
	exits contract.ExitRecorder,
) JobExecutionStrategy {
	return &PositionMonitorStrategy{
		cfg:       cfg,
		log:       log,
		tracker:   tracker,
		positions: positions,
		prices:    prices,
		ta:        ta,
		scorer:    scorer,
		phase:     phase,
		exits:     exits,
	}
}

func (s *PositionMonitorStrategy) GetType() JobType {
	return JobTypePositionMonitor
}

func (s *PositionMonitorStrategy) Execute(ctx context.Context, job *dto.JobDefinition) (JobResult, error) {
	symbols := s.tracker.Symbols()
	if len(symbols) == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no tracked positions"}, nil
	}

	// nil open set means the exchange could not be asked, so nothing is treated as closed externally
	var open map[string]struct{}
	if positions, err := s.positions.ListOpenPositions(ctx); err != nil {
		s.log.WarnContext(ctx, "Failed to list open positions, skipping reconciliation", logger.ErrorField(err))
	} else {
		open = make(map[string]struct{}, len(positions))
		for _, p := range positions {
			open[strings.ToUpper(p.Symbol)] = struct{}{}
		}
	}

	var (
		mu      sync.Mutex
		results []PositionMonitorResult
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scanner.MaxConcurrency)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			if !utils.ShouldContinue(gctx, s.log) {
				return nil
			}
			res := s.monitor(gctx, symbol, open)

			mu.Lock()
			defer mu.Unlock()
			if res.Errors != "" {
				failed++
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })
	out, err := json.Marshal(results)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal results: %v", err)}, fmt.Errorf("failed to marshal results: %w", err)
	}

	switch {
	case len(results) == 0:
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "monitoring interrupted"}, nil
	case failed == len(results):
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: string(out)}, fmt.Errorf("all %d positions failed to update", failed)
	case failed > 0:
		return JobResult{ExitCode: JOB_EXIT_CODE_PARTIAL_SUCCESS, Output: string(out)}, nil
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(out)}, nil
}

func (s *PositionMonitorStrategy) monitor(ctx context.Context, symbol string, open map[string]struct{}) PositionMonitorResult {
	res := PositionMonitorResult{Symbol: symbol}

	st := s.tracker.GetStatus(symbol)
	if st == nil {
		return res
	}
	if st.Exited {
		res.ExitReason = string(st.ExitReason)
		if err := s.finish(ctx, st); err != nil {
			res.Errors = err.Error()
		}
		return res
	}

	if open != nil {
		if _, ok := open[strings.ToUpper(symbol)]; !ok {
			s.log.InfoContext(ctx, "Position closed outside the bot", logger.StringField("symbol", symbol))
			if err := s.tracker.MarkExited(ctx, symbol, dto.ExitExternal); err != nil {
				res.Errors = err.Error()
				return res
			}
			res.ExitReason = string(dto.ExitExternal)
			if err := s.finish(ctx, s.tracker.GetStatus(symbol)); err != nil {
				res.Errors = err.Error()
			}
			return res
		}
	}

	price, err := s.prices.GetTicker(ctx, symbol)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to get ticker", logger.StringField("symbol", symbol), logger.ErrorField(err))
		res.Errors = fmt.Sprintf("ticker: %v", err)
		return res
	}
	res.Price = price

	tick := dto.PriceTick{
		Symbol:       symbol,
		CurrentPrice: price,
		Confidence:   s.confidence(ctx, symbol, st.Side),
	}
	if s.phase != nil {
		tick.TrendPhase = s.phase.Detect(ctx, symbol).Phase
		res.Phase = string(tick.TrendPhase)
	}

	if err := s.tracker.Update(ctx, tick); err != nil {
		s.log.WarnContext(ctx, "Failed to update tracker", logger.StringField("symbol", symbol), logger.ErrorField(err))
		res.Errors = fmt.Sprintf("update: %v", err)
	}

	after := s.tracker.GetStatus(symbol)
	if after == nil {
		return res
	}
	res.Roi = after.LastRoi
	if after.Exited {
		res.ExitReason = string(after.ExitReason)
		if err := s.finish(ctx, after); err != nil {
			res.Errors = err.Error()
		}
	}
	return res
}

// confidence scores the current snapshot in the direction of the held side.
// A reading that favours the opposite side counts against the position.
func (s *PositionMonitorStrategy) confidence(ctx context.Context, symbol string, side dto.Side) *float64 {
	if s.ta == nil || s.scorer == nil {
		return nil
	}
	snap := s.ta.GetTA(ctx, symbol)
	if snap == nil {
		return nil
	}
	result := s.scorer.Calculate(*snap)
	score := result.Score
	if result.Bias.Directional() && result.Bias.Side() != side {
		score = 100 - score
	}
	return utils.ToPointer(score)
}

// finish journals an exited position and drops it from the tracker. On a journal
// failure the exited state is kept so the next run records it again.
func (s *PositionMonitorStrategy) finish(ctx context.Context, st *dto.PositionTrackState) error {
	if st == nil {
		return nil
	}
	if s.exits != nil {
		if err := s.exits.RecordExit(ctx, st); err != nil {
			s.log.ErrorContext(ctx, "Failed to record exit, keeping state for retry", logger.StringField("symbol", st.Symbol), logger.ErrorField(err))
			return fmt.Errorf("journal: %w", err)
		}
	}
	s.tracker.Reset(ctx, st.Symbol)
	return nil
}
