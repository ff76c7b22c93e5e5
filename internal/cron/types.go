// Package cron schedules recurring collect and compose runs.
// Jobs are persisted to JSON and executed through a JobHandler.
//
// Three schedule types are supported:
//   - "at":    one-time execution at a specific timestamp
//   - "every": recurring interval (in milliseconds)
//   - "cron":  standard cron expression (5-field, parsed by gronx)
package cron

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Schedule kinds.
const (
	KindAt    = "at"
	KindEvery = "every"
	KindCron  = "cron"
)

// Payload kinds.
const (
	PayloadCompose = "compose"
	PayloadCollect = "collect"
)

// Schedule defines when a job should run.
type Schedule struct {
	Kind    string `json:"kind"`              // "at", "every", or "cron"
	AtMS    *int64 `json:"atMs,omitempty"`    // absolute timestamp (for "at")
	EveryMS *int64 `json:"everyMs,omitempty"` // interval in milliseconds (for "every")
	Expr    string `json:"expr,omitempty"`    // cron expression (for "cron")
}

// Payload describes what a job does when triggered.
type Payload struct {
	Kind    string `json:"kind"` // "compose" or "collect"
	Account string `json:"account"`
	Publish bool   `json:"publish,omitempty"` // compose only
	Webhook string `json:"webhook,omitempty"` // compose only; overrides config
}

// JobState tracks runtime state for a job.
type JobState struct {
	NextRunAtMS *int64 `json:"nextRunAtMs,omitempty"`
	LastRunAtMS *int64 `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"` // "ok" or "error"
	LastError   string `json:"lastError,omitempty"`
}

// Job is a scheduled run.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMS    int64    `json:"createdAtMs"`
	UpdatedAtMS    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
}

// Store is the persisted job file.
type Store struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

// RunLogEntry is an in-memory record of a job execution.
type RunLogEntry struct {
	Ts       int64  `json:"ts"`
	JobID    string `json:"jobId"`
	Status   string `json:"status,omitempty"` // "ok", "error"
	Error    string `json:"error,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// JobHandler runs a job and returns a one-line summary.
type JobHandler func(ctx context.Context, job *Job) (string, error)

// generateID returns a short random job ID.
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
