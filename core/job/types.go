package job

import (
	"errors"
	"time"
)

// Status captures the lifecycle of a build job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

var (
	ErrDuplicateJob = errors.New("job id already exists")
	ErrNotFound     = errors.New("job not found")
	ErrTerminal     = errors.New("job already terminal")
)

// LogEntry is one append-only progress event in a job's history.
type LogEntry struct {
	Progress int       `json:"progress"`
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	TS       time.Time `json:"ts"`
}

// Flags records which suite the job was asked to generate and whether
// generation is required. Fixed at submit time so the failure policy is
// visible in every snapshot.
type Flags struct {
	GenerateUnit       bool `json:"generate_unit"`
	GenerateBDD        bool `json:"generate_bdd"`
	GenerationRequired bool `json:"generation_required"`
}

// Record is the registry's view of one job. Snapshot returns deep copies;
// the registry owns the canonical record and all mutation goes through
// its methods.
type Record struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	Message      string     `json:"message"`
	Logs         []LogEntry `json:"logs"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	Failure      string     `json:"failure,omitempty"`
	Flags        Flags      `json:"flags"`
	WorkDir      string     `json:"work_dir,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
