package strategy

import (
	"context"
	"poseidon/internal/dto"
)

const (
	JOB_EXIT_CODE_SUCCESS         = 200
	JOB_EXIT_CODE_FAILED          = 500
	JOB_EXIT_CODE_SKIPPED         = 204
	JOB_EXIT_CODE_PARTIAL_SUCCESS = 206
)

type JobType string

const (
	JobTypeMarketScan      JobType = "market_scan"
	JobTypePositionMonitor JobType = "position_monitor"
	JobTypeJournalCleanUp  JobType = "journal_clean_up"
)

type JobResult struct {
	ExitCode int32  `json:"exit_code"`
	Output   string `json:"output"`
}

// JobExecutionStrategy defines the interface for different job execution strategies.
type JobExecutionStrategy interface {
	Execute(ctx context.Context, job *dto.JobDefinition) (JobResult, error)
	GetType() JobType
}
