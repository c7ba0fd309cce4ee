package repository

import (
	"fmt"
	"poseidon/config"
	"poseidon/internal/contract"
	"poseidon/pkg/cache"
	"poseidon/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	KucoinRepo       KucoinRepository
	ScannerRepo      ScannerRepository
	TARepo           TARepository
	Broker           contract.Broker
	TrackerStateRepo TrackerStateRepository

	// nil when the database is disabled
	TradeJournalRepo TradeJournalRepository
	FeedEventRepo    FeedEventRepository
	JobRepo          JobRepository
	UnitOfWork       UnitOfWork
}

// NewRepository wires the exchange, execution and storage repositories. db may be nil.
func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger, c cache.Cache) (*Repository, error) {
	kucoin := NewKucoinRepository(cfg, log)

	var broker contract.Broker
	switch cfg.Executor.Mode {
	case "http":
		broker = NewHTTPExecutor(cfg, log)
	default:
		broker = NewPaperExecutor(log, kucoin, cfg.Executor.PaperBalanceUSDT)
	}

	state, err := NewTrackerStateRepository(cfg.Storage.StatePath)
	if err != nil {
		return nil, fmt.Errorf("tracker state repository: %w", err)
	}

	repo := &Repository{
		KucoinRepo:       kucoin,
		ScannerRepo:      NewScannerRepository(cfg, log, kucoin, c),
		TARepo:           NewTARepository(cfg, log, kucoin, c),
		Broker:           broker,
		TrackerStateRepo: state,
	}
	if db != nil {
		repo.TradeJournalRepo = NewTradeJournalRepository(db)
		repo.FeedEventRepo = NewFeedEventRepository(db)
		repo.JobRepo = NewJobRepository(db)
		repo.UnitOfWork = NewUnitOfWork(db)
	}
	return repo, nil
}

func (r *Repository) Close() error {
	if r.TrackerStateRepo != nil {
		return r.TrackerStateRepo.Close()
	}
	return nil
}
