package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/repository"
	"poseidon/pkg/logger"
	"poseidon/pkg/utils"
	"time"
)

const defaultRetention = 7 * 24 * time.Hour

type CleanUpResult struct {
	Table string `json:"table"`
	Total int64  `json:"total"`
	Error string `json:"error,omitempty"`
}

type JournalCleanUpStrategy struct {
	cfg           *config.Config
	log           *logger.Logger
	unitOfWork    repository.UnitOfWork
	feedEventRepo repository.FeedEventRepository
	jobRepo       repository.JobRepository
	clock         utils.Clock
}

func NewJournalCleanUpStrategy(cfg *config.Config, log *logger.Logger, unitOfWork repository.UnitOfWork, feedEventRepo repository.FeedEventRepository, jobRepo repository.JobRepository) JobExecutionStrategy {
	return &JournalCleanUpStrategy{
		cfg:           cfg,
		log:           log,
		unitOfWork:    unitOfWork,
		feedEventRepo: feedEventRepo,
		jobRepo:       jobRepo,
		clock:         utils.SystemClock,
	}
}

func (s *JournalCleanUpStrategy) GetType() JobType {
	return JobTypeJournalCleanUp
}

func (s *JournalCleanUpStrategy) Execute(ctx context.Context, job *dto.JobDefinition) (JobResult, error) {
	if s.unitOfWork == nil || s.feedEventRepo == nil || s.jobRepo == nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "database disabled"}, nil
	}

	retention := s.cfg.Scheduler.FeedRetention
	if retention <= 0 {
		retention = defaultRetention
	}
	date := s.clock().Add(-retention)
	s.log.InfoContext(ctx, "Starting clean up", logger.StringField("older_than", date.Format(time.RFC3339)))

	var outputMsg []CleanUpResult
	err := s.unitOfWork.Run(ctx, func(opts ...utils.DBOption) error {
		total, err := s.feedEventRepo.DeleteOlderThan(ctx, date, opts...)
		if err != nil {
			outputMsg = append(outputMsg, CleanUpResult{Table: "feed_events", Error: err.Error()})
			return fmt.Errorf("failed to delete feed events older than %v: %w", date, err)
		}
		outputMsg = append(outputMsg, CleanUpResult{Table: "feed_events", Total: total})

		total, err = s.jobRepo.DeleteTaskHistoryOlderThan(ctx, date, opts...)
		if err != nil {
			outputMsg = append(outputMsg, CleanUpResult{Table: "task_execution_history", Error: err.Error()})
			return fmt.Errorf("failed to delete job history older than %v: %w", date, err)
		}
		outputMsg = append(outputMsg, CleanUpResult{Table: "task_execution_history", Total: total})
		return nil
	})

	res, mErr := json.Marshal(outputMsg)
	if mErr != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output message: %v", mErr)}, fmt.Errorf("failed to marshal output message: %w", mErr)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "Clean up rolled back", logger.ErrorField(err))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: string(res)}, err
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(res)}, nil
}
