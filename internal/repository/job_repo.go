package repository

import (
	"context"
	"poseidon/internal/model"
	"poseidon/pkg/utils"
	"time"

	"gorm.io/gorm"
)

type JobRepository interface {
	CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error
	UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error
	GetTaskExecutionHistory(ctx context.Context, jobName string, limit int, opts ...utils.DBOption) ([]model.TaskExecutionHistory, error)
	DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(history).Error
}

func (r *jobRepository) UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Updates(history).Error
}

func (r *jobRepository) GetTaskExecutionHistory(ctx context.Context, jobName string, limit int, opts ...utils.DBOption) ([]model.TaskExecutionHistory, error) {
	var histories []model.TaskExecutionHistory
	if jobName != "" {
		opts = append(opts, utils.WithWhere("job_name = ?", jobName))
	}
	opts = append(opts, utils.WithOrder("started_at DESC"), utils.WithLimit(limit))
	if err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}

func (r *jobRepository) DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Where("created_at < ?", date).Delete(&model.TaskExecutionHistory{})
	return result.RowsAffected, result.Error
}
