package service

import (
	"context"
	"fmt"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/repository"
	"poseidon/internal/strategy"
	"poseidon/pkg/cache"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/telegram"
	"poseidon/pkg/utils"
)

type Service struct {
	FeedService      FeedService
	Tracker          *TpTracker
	Scorer           *ConfidenceScorer
	PhaseDetector    *TrendPhaseDetector
	SignalPipeline   SignalPipeline
	TradeService     TradeService
	TaskExecutor     TaskExecutor
	SchedulerService SchedulerService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	notifier *telegram.Notifier,
	m *metrics.Metrics,
) (*Service, error) {
	feedService := NewFeedService(cfg, log, inmemoryCache, repo.FeedEventRepo, notifier, m)

	tracker, err := NewTpTracker(TpConfigFrom(cfg.TP), log, repo.Broker, feedService,
		WithStateRepository(repo.TrackerStateRepo),
		WithTrackerMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("tp tracker: %w", err)
	}

	scorer := NewConfidenceScorer(cfg.SessionBias, utils.SystemClock)
	phaseDetector := NewTrendPhaseDetector(repo.KucoinRepo, log, utils.SystemClock)

	pipeline, err := NewSignalPipeline(cfg, log, repo.ScannerRepo, repo.TARepo, scorer, phaseDetector, repo.Broker, feedService, m)
	if err != nil {
		return nil, fmt.Errorf("signal pipeline: %w", err)
	}

	tradeService := NewTradeService(cfg, log, repo.Broker, tracker, feedService, m, repo.TradeJournalRepo, repo.UnitOfWork)
	pipeline.SetConsumer(tradeService)

	taskExecutor := NewTaskExecutor(cfg, log, repo.JobRepo, m,
		strategy.NewMarketScanStrategy(cfg, log, repo.ScannerRepo, pipeline),
		strategy.NewPositionMonitorStrategy(cfg, log, tracker, repo.Broker, repo.KucoinRepo, repo.TARepo, scorer, phaseDetector, tradeService),
		strategy.NewJournalCleanUpStrategy(cfg, log, repo.UnitOfWork, repo.FeedEventRepo, repo.JobRepo),
	)
	schedulerService, err := NewSchedulerService(cfg, log, repo.JobRepo, taskExecutor)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	return &Service{
		FeedService:      feedService,
		Tracker:          tracker,
		Scorer:           scorer,
		PhaseDetector:    phaseDetector,
		SignalPipeline:   pipeline,
		TradeService:     tradeService,
		TaskExecutor:     taskExecutor,
		SchedulerService: schedulerService,
	}, nil
}

// Restore reloads tracked positions persisted by a previous run.
func (s *Service) Restore(ctx context.Context) (int, error) {
	return s.Tracker.Restore(ctx)
}

// TpConfigFrom maps the file configuration onto the tracker's runtime configuration.
func TpConfigFrom(tp config.TP) dto.TpConfig {
	out := dto.TpConfig{
		Policy:                dto.ExitPolicyName(tp.Policy),
		StepPct:               tp.StepPct,
		TakeFraction:          tp.TakeFraction,
		MaxSteps:              tp.MaxSteps,
		TrailDropPct:          tp.TrailDropPct,
		MinExitConfidence:     tp.MinExitConfidence,
		EmitThrottle:          tp.EmitThrottle,
		MinRemainderContracts: tp.MinRemainderContracts,
		MarginFallbackRatio:   tp.MarginFallbackRatio,
		ExecutorTimeout:       tp.ExecutorTimeout,
		PartialTriggerRoi:     tp.PartialTriggerRoi,
		PartialTakeFraction:   tp.PartialTakeFraction,
		RoiDrawdownPct:        tp.RoiDrawdownPct,
	}
	for _, step := range tp.Steps {
		out.Steps = append(out.Steps, dto.TPStep{Roi: step.Roi, Take: step.Take})
	}
	return out
}
