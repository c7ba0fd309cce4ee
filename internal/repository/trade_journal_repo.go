package repository

import (
	"context"
	"errors"
	"poseidon/internal/model"
	"poseidon/pkg/utils"

	"gorm.io/gorm"
)

type TradeJournalRepository interface {
	Create(ctx context.Context, journal *model.TradeJournal, opts ...utils.DBOption) error
	Update(ctx context.Context, journal *model.TradeJournal, opts ...utils.DBOption) error
	FindOpenBySymbol(ctx context.Context, symbol string, opts ...utils.DBOption) (*model.TradeJournal, error)
	Get(ctx context.Context, param *model.GetTradeJournalParam, opts ...utils.DBOption) ([]model.TradeJournal, error)
}

type tradeJournalRepository struct {
	db *gorm.DB
}

func NewTradeJournalRepository(db *gorm.DB) TradeJournalRepository {
	return &tradeJournalRepository{db: db}
}

func (r *tradeJournalRepository) Create(ctx context.Context, journal *model.TradeJournal, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(journal).Error
}

func (r *tradeJournalRepository) Update(ctx context.Context, journal *model.TradeJournal, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Save(journal).Error
}

// FindOpenBySymbol returns the latest open journal row, or nil when there is none.
func (r *tradeJournalRepository) FindOpenBySymbol(ctx context.Context, symbol string, opts ...utils.DBOption) (*model.TradeJournal, error) {
	var journal model.TradeJournal
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("symbol = ? AND status = ?", symbol, model.TradeStatusOpen).
		Order("opened_at DESC").
		First(&journal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &journal, nil
}

func (r *tradeJournalRepository) Get(ctx context.Context, param *model.GetTradeJournalParam, opts ...utils.DBOption) ([]model.TradeJournal, error) {
	var journals []model.TradeJournal
	if param.Symbol != nil {
		opts = append(opts, utils.WithWhere("symbol = ?", *param.Symbol))
	}
	if param.Status != nil {
		opts = append(opts, utils.WithWhere("status = ?", *param.Status))
	}
	if param.Limit != nil {
		opts = append(opts, utils.WithLimit(*param.Limit))
	}
	opts = append(opts, utils.WithOrder("opened_at DESC"))
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Find(&journals).Error; err != nil {
		return nil, err
	}
	return journals, nil
}
