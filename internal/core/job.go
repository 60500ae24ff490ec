package core

import (
	"encoding/json"
	"time"
)

type JobOp string

const (
	OpProvision JobOp = "provision"
	OpDestroy   JobOp = "destroy"
)

type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
	JobDead      JobStatus = "DEAD"
)

type ProvisionJob struct {
	JobID       string          `json:"job_id"`
	RequestID   int64           `json:"request_id"`
	Op          JobOp           `json:"op"`
	Status      JobStatus       `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	NextRunAt   time.Time       `json:"next_run_at"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// IsRetryable returns true if the job can be re-run by the queue.
func (j *ProvisionJob) IsRetryable() bool {
	return j.Status == JobFailed && j.Attempt < j.MaxAttempts
}

// IsTerminal returns true if the job is in a final state.
func (j *ProvisionJob) IsTerminal() bool {
	switch j.Status {
	case JobSucceeded, JobDead:
		return true
	}
	return false
}
