package service

import (
	"context"
	"errors"
	"poseidon/config"
	"poseidon/internal/dto"
	"poseidon/internal/model"
	"poseidon/internal/strategy"
	"poseidon/pkg/logger"
	"poseidon/pkg/metrics"
	"poseidon/pkg/utils"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	jobType strategy.JobType
	result  strategy.JobResult
	err     error
	block   chan struct{}
	calls   atomic.Int32
}

func (s *stubStrategy) GetType() strategy.JobType { return s.jobType }

func (s *stubStrategy) Execute(ctx context.Context, job *dto.JobDefinition) (strategy.JobResult, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_FAILED}, ctx.Err()
		}
	}
	return s.result, s.err
}

type mockJobRepo struct{ mock.Mock }

func (m *mockJobRepo) CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) GetTaskExecutionHistory(ctx context.Context, jobName string, limit int, opts ...utils.DBOption) ([]model.TaskExecutionHistory, error) {
	args := m.Called(ctx, jobName, limit)
	h, _ := args.Get(0).([]model.TaskExecutionHistory)
	return h, args.Error(1)
}

func (m *mockJobRepo) DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

func TestTaskExecutor_RecordsHistory(t *testing.T) {
	repo := &mockJobRepo{}
	repo.On("CreateTaskExecutionHistory", mock.Anything, mock.MatchedBy(func(h *model.TaskExecutionHistory) bool {
		return h.JobName == "market_scan" && h.Status == model.StatusRunning && h.Trigger == "manual"
	})).Return(nil).Once()
	repo.On("UpdateTaskExecutionHistory", mock.Anything, mock.MatchedBy(func(h *model.TaskExecutionHistory) bool {
		return h.Status == model.StatusCompleted && h.ExitCode.Int32 == strategy.JOB_EXIT_CODE_SUCCESS && h.Output.String == "ok" && h.CompletedAt.Valid
	})).Return(nil).Once()

	m := metrics.New()
	scan := &stubStrategy{jobType: strategy.JobTypeMarketScan, result: strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_SUCCESS, Output: "ok"}}
	exec := NewTaskExecutor(&config.Config{}, logger.NewNop(), repo, m, scan)

	res, err := exec.Execute(context.Background(), dto.JobDefinition{Name: "market_scan", Type: "market_scan", Trigger: dto.JobTriggerManual})
	require.NoError(t, err)
	assert.EqualValues(t, strategy.JOB_EXIT_CODE_SUCCESS, res.ExitCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("market_scan", "completed")))
	repo.AssertExpectations(t)
}

func TestTaskExecutor_FailuresAndUnknownType(t *testing.T) {
	failing := &stubStrategy{jobType: strategy.JobTypePositionMonitor, result: strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_FAILED}, err: errors.New("exchange down")}
	m := metrics.New()
	exec := NewTaskExecutor(&config.Config{}, logger.NewNop(), nil, m, failing)

	_, err := exec.Execute(context.Background(), dto.JobDefinition{Name: "position_monitor", Type: "position_monitor"})
	assert.EqualError(t, err, "exchange down")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("position_monitor", "failed")))

	res, err := exec.Execute(context.Background(), dto.JobDefinition{Name: "mystery", Type: "mystery"})
	assert.ErrorIs(t, err, dto.ErrJobNotFound)
	assert.EqualValues(t, strategy.JOB_EXIT_CODE_FAILED, res.ExitCode)
}

func schedulerConfig() *config.Config {
	return &config.Config{Scheduler: config.Scheduler{
		MarketScanCron:      "*/30 * * * * *",
		PositionMonitorCron: "@every 5s",
		TimeoutDuration:     50 * time.Millisecond,
	}}
}

func TestScheduler_JobsAndRunJob(t *testing.T) {
	scan := &stubStrategy{jobType: strategy.JobTypeMarketScan, result: strategy.JobResult{ExitCode: strategy.JOB_EXIT_CODE_SUCCESS}}
	exec := NewTaskExecutor(&config.Config{}, logger.NewNop(), nil, nil, scan)
	s, err := NewSchedulerService(schedulerConfig(), logger.NewNop(), nil, exec)
	require.NoError(t, err)

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "market_scan", jobs[0].Name)
	assert.Equal(t, 50*time.Millisecond, jobs[0].Timeout)
	assert.Empty(t, jobs[2].Cron)

	res, err := s.RunJob(context.Background(), "market_scan")
	require.NoError(t, err)
	assert.EqualValues(t, strategy.JOB_EXIT_CODE_SUCCESS, res.ExitCode)
	assert.EqualValues(t, 1, scan.calls.Load())

	_, err = s.RunJob(context.Background(), "nope")
	assert.ErrorIs(t, err, dto.ErrJobNotFound)

	history, err := s.History(context.Background(), "market_scan", 10)
	assert.NoError(t, err)
	assert.Empty(t, history)
}

func TestScheduler_RunJobTimesOutAndRejectsOverlap(t *testing.T) {
	block := make(chan struct{})
	scan := &stubStrategy{jobType: strategy.JobTypeMarketScan, block: block}
	m := metrics.New()
	exec := NewTaskExecutor(&config.Config{}, logger.NewNop(), nil, m, scan)
	cfg := schedulerConfig()
	cfg.Scheduler.TimeoutDuration = time.Second
	s, err := NewSchedulerService(cfg, logger.NewNop(), nil, exec)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunJob(context.Background(), "market_scan")
		done <- err
	}()
	require.Eventually(t, func() bool { return scan.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	res, err := s.RunJob(context.Background(), "market_scan")
	assert.ErrorIs(t, err, dto.ErrJobRunning)
	assert.EqualValues(t, strategy.JOB_EXIT_CODE_SKIPPED, res.ExitCode)

	close(block)
	assert.NoError(t, <-done)

	// a job that overruns its timeout is recorded as timed out
	slow := &stubStrategy{jobType: strategy.JobTypeMarketScan, block: make(chan struct{})}
	s2, err := NewSchedulerService(schedulerConfig(), logger.NewNop(), nil, NewTaskExecutor(&config.Config{}, logger.NewNop(), nil, m, slow))
	require.NoError(t, err)
	_, err = s2.RunJob(context.Background(), "market_scan")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("market_scan", "timeout")))
}

func TestScheduler_InvalidCron(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Scheduler.CleanUpCron = "every tuesday"
	_, err := NewSchedulerService(cfg, logger.NewNop(), nil, NewTaskExecutor(cfg, logger.NewNop(), nil, nil))
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewSchedulerService(schedulerConfig(), logger.NewNop(), nil, NewTaskExecutor(&config.Config{}, logger.NewNop(), nil, nil))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	<-s.Stop().Done()
}
