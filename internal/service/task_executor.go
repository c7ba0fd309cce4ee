package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/internal/repository"
	"poseidon/internal/strategy"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/utils"
)

type TaskExecutor interface {
	Execute(ctx context.Context, job dto.JobDefinition) (strategy.JobResult, error)
}

type taskExecutor struct {
	cfg                *config.Config
	log                *logger.Logger
	jobRepo            repository.JobRepository
	metrics            *metrics.Metrics
	executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy
	clock              utils.Clock
}

// NewTaskExecutor dispatches jobs to their strategy. jobRepo may be nil, in which case no history is kept.
func NewTaskExecutor(cfg *config.Config, log *logger.Logger, jobRepo repository.JobRepository, m *metrics.Metrics, strategies ...strategy.JobExecutionStrategy) TaskExecutor {
	executorStrategies := make(map[strategy.JobType]strategy.JobExecutionStrategy, len(strategies))
	for _, s := range strategies {
		executorStrategies[s.GetType()] = s
	}
	return &taskExecutor{
		cfg:                cfg,
		log:                log,
		jobRepo:            jobRepo,
		metrics:            m,
		executorStrategies: executorStrategies,
		clock:              utils.SystemClock,
	}
}

func (t *taskExecutor) Execute(ctx context.Context, job dto.JobDefinition) (strategy.JobResult, error) {
	t.log.InfoContext(ctx, "Processing job", logger.StringField("job_name", job.Name), logger.StringField("job_type", job.Type))

	history := &model.TaskExecutionHistory{
		JobName:   job.Name,
		JobType:   job.Type,
		Trigger:   string(job.Trigger),
		Status:    model.StatusRunning,
		StartedAt: t.clock(),
	}
	if t.jobRepo != nil {
		if err := t.jobRepo.CreateTaskExecutionHistory(ctx, history); err != nil {
			t.log.WarnContext(ctx, "Failed to create task history", logger.ErrorField(err), logger.StringField("job_name", job.Name))
			history = nil
		}
	}

	var (
		result strategy.JobResult
		err    error
	)
	executor := t.executorStrategies[strategy.JobType(job.Type)]
	if executor == nil {
		t.log.ErrorContext(ctx, "Job type not found", logger.StringField("job_name", job.Name), logger.StringField("job_type", job.Type))
		err = fmt.Errorf("%w: type %q", dto.ErrJobNotFound, job.Type)
		result = strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_FAILED, Output: "job type not found"}
	} else {
		result, err = executor.Execute(ctx, &job)
	}

	status := model.StatusCompleted
	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		status = model.StatusTimeout
	case err != nil:
		status = model.StatusFailed
	}
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to execute job", logger.ErrorField(err), logger.StringField("job_name", job.Name))
	}
	if t.metrics != nil {
		t.metrics.JobRuns.WithLabelValues(job.Name, string(status)).Inc()
	}

	if t.jobRepo != nil && history != nil {
		history.Status = status
		history.ExitCode = sql.NullInt32{Int32: result.ExitCode, Valid: true}
		history.Output = sql.NullString{String: result.Output, Valid: true}
		if err != nil {
			history.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		completedAt := t.clock()
		history.CompletedAt = sql.NullTime{Time: completedAt, Valid: true}
		history.DurationMs = completedAt.Sub(history.StartedAt).Milliseconds()

		// the job context may already be spent
		if uErr := t.jobRepo.UpdateTaskExecutionHistory(context.WithoutCancel(ctx), history); uErr != nil {
			t.log.ErrorContext(ctx, "Failed to update task execution history", logger.ErrorField(uErr), logger.StringField("job_name", job.Name))
		}
	}

	return result, err
}
