package service

import (
	"context"
	"fmt"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/internal/repository"
	"poseidon/internal/strategy"
	"poseidon/pkg/keylock"
	"poseidon/pkg/logger"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultJobTimeout = 2 * time.Minute

type SchedulerService interface {
	Start(ctx context.Context) error
	// Stop halts the cron and returns a context that is done once running jobs finish.
	Stop() context.Context
	Jobs() []dto.JobDefinition
	RunJob(ctx context.Context, name string) (strategy.JobResult, error)
	History(ctx context.Context, name string, limit int) ([]model.TaskExecutionHistory, error)
}

type schedulerService struct {
	cfg          *config.Config
	log          *logger.Logger
	cronParser   cron.Parser
	jobRepo      repository.JobRepository
	taskExecutor TaskExecutor
	jobs         []dto.JobDefinition
	running      *keylock.KeyedMutex

	mu   sync.Mutex
	cron *cron.Cron
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	jobRepo repository.JobRepository,
	taskExecutor TaskExecutor,
) (SchedulerService, error) {
	s := &schedulerService{
		cfg:          cfg,
		log:          log,
		jobRepo:      jobRepo,
		cronParser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		taskExecutor: taskExecutor,
		running:      keylock.New(),
	}

	timeout := cfg.Scheduler.TimeoutDuration
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	for _, def := range []dto.JobDefinition{
		{Name: string(strategy.JobTypeMarketScan), Type: string(strategy.JobTypeMarketScan), Cron: cfg.Scheduler.MarketScanCron, Timeout: timeout},
		{Name: string(strategy.JobTypePositionMonitor), Type: string(strategy.JobTypePositionMonitor), Cron: cfg.Scheduler.PositionMonitorCron, Timeout: timeout},
		{Name: string(strategy.JobTypeJournalCleanUp), Type: string(strategy.JobTypeJournalCleanUp), Cron: cfg.Scheduler.CleanUpCron, Timeout: timeout},
	} {
		if def.Cron != "" {
			if _, err := s.cronParser.Parse(def.Cron); err != nil {
				return nil, fmt.Errorf("invalid cron for %s: %w", def.Name, err)
			}
		}
		s.jobs = append(s.jobs, def)
	}
	return s, nil
}

func (s *schedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(
		cron.WithParser(s.cronParser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	for _, job := range s.jobs {
		if job.Cron == "" {
			s.log.InfoContext(ctx, "Job has no schedule, manual runs only", logger.StringField("job_name", job.Name))
			continue
		}
		job := job
		job.Trigger = dto.JobTriggerCron
		if _, err := c.AddFunc(job.Cron, func() {
			if _, err := s.runJob(context.WithoutCancel(ctx), job); err != nil {
				s.log.ErrorContextWithAlert(ctx, "Failed to execute job",
					logger.ErrorField(err),
					logger.StringField("job_name", job.Name),
					logger.StringField("job_type", job.Type),
				)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		s.log.InfoContext(ctx, "Job scheduled", logger.StringField("job_name", job.Name), logger.StringField("cron", job.Cron))
	}
	c.Start()
	s.cron = c
	return nil
}

func (s *schedulerService) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	ctx := s.cron.Stop()
	s.cron = nil
	return ctx
}

func (s *schedulerService) Jobs() []dto.JobDefinition {
	return append([]dto.JobDefinition(nil), s.jobs...)
}

// RunJob runs a job now and waits for it. A job already in flight is not started twice.
func (s *schedulerService) RunJob(ctx context.Context, name string) (strategy.JobResult, error) {
	s.log.InfoContext(ctx, "Running job task", logger.StringField("job_name", name))
	for _, job := range s.jobs {
		if job.Name == name {
			job.Trigger = dto.JobTriggerManual
			return s.runJob(ctx, job)
		}
	}
	return strategy.JobResult{}, fmt.Errorf("%w: %s", dto.ErrJobNotFound, name)
}

func (s *schedulerService) History(ctx context.Context, name string, limit int) ([]model.TaskExecutionHistory, error) {
	if s.jobRepo == nil {
		return []model.TaskExecutionHistory{}, nil
	}
	return s.jobRepo.GetTaskExecutionHistory(ctx, name, limit)
}

func (s *schedulerService) runJob(ctx context.Context, job dto.JobDefinition) (strategy.JobResult, error) {
	release, ok := s.running.TryLock(job.Name)
	if !ok {
		s.log.WarnContext(ctx, "Job still running, skipped", logger.StringField("job_name", job.Name))
		return strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_SKIPPED, Output: "already running"}, dto.ErrJobRunning
	}
	defer release()

	newCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	start := time.Now()
	result, err := s.taskExecutor.Execute(newCtx, job)
	s.log.InfoContext(ctx, "Job execution completed",
		logger.StringField("job_name", job.Name),
		logger.StringField("trigger", string(job.Trigger)),
		logger.IntField("exit_code", int(result.ExitCode)),
		logger.StringField("elapsed", time.Since(start).String()),
	)
	return result, err
}

// cronLogger routes robfig/cron's own messages into the application logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.ErrorField(err))...)
}

func kvFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Field(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
