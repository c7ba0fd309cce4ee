package dto

import "time"

type JobTrigger string

const (
	JobTriggerCron   JobTrigger = "cron"
	JobTriggerManual JobTrigger = "manual"
)

// JobDefinition binds a job type to its cron expression and timeout.
// Trigger is set per run and is empty on the configured definition.
type JobDefinition struct {
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Cron    string        `json:"cron"`
	Timeout time.Duration `json:"timeout"`
	Trigger JobTrigger    `json:"trigger,omitempty"`
}
