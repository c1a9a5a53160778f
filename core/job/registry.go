package job

import (
	"fmt"
	"sync"
	"time"
)

// Mirror receives a copy of registry mutations. Implementations must not
// block; a slow mirror is the mirror's problem, not the pipeline's.
type Mirror interface {
	RecordUpdated(rec Record, entry *LogEntry)
}

type multiMirror []Mirror

func (m multiMirror) RecordUpdated(rec Record, entry *LogEntry) {
	for _, mm := range m {
		mm.RecordUpdated(rec, entry)
	}
}

// MultiMirror fans mutations out to several mirrors. Nil entries are
// dropped; with none left the result is nil.
func MultiMirror(mirrors ...Mirror) Mirror {
	var kept multiMirror
	for _, m := range mirrors {
		if m != nil {
			kept = append(kept, m)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return kept
	}
}

// Registry is the in-memory store of job records. It is the single
// source of truth for job status. The outer map lock is held only for
// lookups and inserts; each record carries its own mutex so concurrent
// jobs never contend on one another's updates.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*entry
	mirror Mirror
}

type entry struct {
	mu  sync.Mutex
	rec Record
}

// NewRegistry creates an empty registry. The mirror is optional.
func NewRegistry(mirror Mirror) *Registry {
	return &Registry{jobs: make(map[string]*entry), mirror: mirror}
}

// Create registers a new pending job.
func (r *Registry) Create(id string, flags Flags, workDir string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("create job: empty id")
	}
	now := time.Now().UTC()
	rec := Record{
		ID:        id,
		Status:    StatusPending,
		Message:   "Queued",
		Flags:     flags,
		WorkDir:   workDir,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	if _, exists := r.jobs[id]; exists {
		r.mu.Unlock()
		return Record{}, fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}
	e := &entry{rec: rec}
	r.jobs[id] = e
	r.mu.Unlock()

	r.notify(rec, nil)
	return cloneRecord(rec), nil
}

// UpdateProgress records a progress checkpoint. Percent is clamped to
// [0,100] and never regresses; the status moves to running while the job
// is live and below 100. Terminal records only accept the log append.
func (r *Registry) UpdateProgress(id string, percent int, statusLabel, message string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if message == "" {
		message = statusLabel
	}

	e.mu.Lock()
	if !e.rec.Status.Terminal() {
		if percent > e.rec.Progress {
			e.rec.Progress = percent
		}
		if e.rec.Progress < 100 {
			e.rec.Status = StatusRunning
		}
		e.rec.Message = message
	}
	logged := LogEntry{
		Progress: e.rec.Progress,
		Status:   statusLabel,
		Message:  message,
		TS:       time.Now().UTC(),
	}
	e.rec.Logs = append(e.rec.Logs, logged)
	e.rec.UpdatedAt = logged.TS
	rec := cloneRecord(e.rec)
	e.mu.Unlock()

	r.notify(rec, &logged)
	return nil
}

// MarkSucceeded finalizes the job with its artifact.
func (r *Registry) MarkSucceeded(id, artifactPath string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.rec.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, e.rec.Status)
	}
	e.rec.Status = StatusSucceeded
	e.rec.Progress = 100
	e.rec.Message = "Complete"
	e.rec.ArtifactPath = artifactPath
	logged := LogEntry{
		Progress: 100,
		Status:   "Complete",
		Message:  "Artifact ready",
		TS:       time.Now().UTC(),
	}
	e.rec.Logs = append(e.rec.Logs, logged)
	e.rec.UpdatedAt = logged.TS
	rec := cloneRecord(e.rec)
	e.mu.Unlock()

	r.notify(rec, &logged)
	return nil
}

// MarkFailed finalizes the job with a failure message. Progress stays
// frozen at its last reported value.
func (r *Registry) MarkFailed(id, errMsg string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.rec.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, e.rec.Status)
	}
	e.rec.Status = StatusFailed
	e.rec.Failure = errMsg
	e.rec.Message = "Error: " + errMsg
	logged := LogEntry{
		Progress: e.rec.Progress,
		Status:   "Error",
		Message:  errMsg,
		TS:       time.Now().UTC(),
	}
	e.rec.Logs = append(e.rec.Logs, logged)
	e.rec.UpdatedAt = logged.TS
	rec := cloneRecord(e.rec)
	e.mu.Unlock()

	r.notify(rec, &logged)
	return nil
}

// Snapshot returns a deep copy of the record, safe to read while the
// pipeline keeps mutating the original.
func (r *Registry) Snapshot(id string) (Record, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Record{}, err
	}
	e.mu.Lock()
	rec := cloneRecord(e.rec)
	e.mu.Unlock()
	return rec, nil
}

// LogsSince returns log entries appended at or after offset, plus the
// new offset and whether the job is terminal. The log is append-only, so
// an offset from a previous call never skips or repeats entries.
func (r *Registry) LogsSince(id string, offset int) ([]LogEntry, int, bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, offset, false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	if offset > len(e.rec.Logs) {
		offset = len(e.rec.Logs)
	}
	entries := make([]LogEntry, len(e.rec.Logs)-offset)
	copy(entries, e.rec.Logs[offset:])
	return entries, len(e.rec.Logs), e.rec.Status.Terminal(), nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

func (r *Registry) notify(rec Record, logged *LogEntry) {
	if r.mirror == nil {
		return
	}
	r.mirror.RecordUpdated(rec, logged)
}

func cloneRecord(rec Record) Record {
	out := rec
	out.Logs = make([]LogEntry, len(rec.Logs))
	copy(out.Logs, rec.Logs)
	return out
}
