package repository

import (
	"context"
	"poseidon/internal/model"
	"poseidon/pkg/utils"
	"time"

	"gorm.io/gorm"
)

type FeedEventRepository interface {
	Create(ctx context.Context, event *model.FeedEvent, opts ...utils.DBOption) error
	Recent(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.FeedEvent, error)
	DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error)
}

type feedEventRepository struct {
	db *gorm.DB
}

func NewFeedEventRepository(db *gorm.DB) FeedEventRepository {
	return &feedEventRepository{db: db}
}

func (r *feedEventRepository) Create(ctx context.Context, event *model.FeedEvent, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(event).Error
}

func (r *feedEventRepository) Recent(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.FeedEvent, error) {
	var events []model.FeedEvent
	opts = append(opts, utils.WithOrder("ts DESC"), utils.WithLimit(limit))
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *feedEventRepository) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Where("ts < ?", date).Delete(&model.FeedEvent{})
	return result.RowsAffected, result.Error
}
