// Package types defines the domain model shared across the compute-job
// server: the job record tracked by the registry and its lifecycle
// states.
package types

import "time"

// JobStatus is a job's position in the lifecycle state machine.
type JobStatus string

const (
	StatusQueued   JobStatus = "queued"
	StatusRunning  JobStatus = "running"
	StatusDone     JobStatus = "done"
	StatusError    JobStatus = "error"
	StatusCanceled JobStatus = "canceled"
)

// Terminal reports whether s is an absorbing state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCanceled:
		return true
	default:
		return false
	}
}

// Job is the registry's record for an async task, keyed by ID.
type Job struct {
	ID              string            `json:"id"`
	TaskName        string            `json:"task_name"`
	Payload         map[string]string `json:"payload"`
	Status          JobStatus         `json:"status"`
	Progress        int               `json:"progress"`
	EtaMs           int64             `json:"eta_ms"`
	CancelRequested bool              `json:"cancel_requested"`
	Result          string            `json:"result,omitempty"`
	Err             string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	StartedAt       time.Time         `json:"started_at,omitempty"`
	FinishedAt      time.Time         `json:"finished_at,omitempty"`
}

// Snapshot is a defensive copy of a Job safe to hand to callers without
// risking a data race on the registry's live record.
func (j *Job) Snapshot() Job {
	cp := *j
	cp.Payload = make(map[string]string, len(j.Payload))
	for k, v := range j.Payload {
		cp.Payload[k] = v
	}
	return cp
}
