// Package events delivers job progress to subscribers. Each subscriber
// owns a cursor over the append-only job log, so a slow consumer never
// loses or repeats entries.
package events

import (
	"context"
	"time"

	"github.com/atomiq/atomiq/core/job"
)

// DefaultPollInterval bounds how stale a subscriber's view can be.
const DefaultPollInterval = 500 * time.Millisecond

// Stream polls the job's log and invokes emit for every new entry, in
// order. It returns nil once the entry carrying the terminal transition
// has been flushed, or the first emit error, or ctx.Err() on cancel.
func Stream(ctx context.Context, reg *job.Registry, jobID string, interval time.Duration, emit func(job.LogEntry) error) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	offset := 0
	for {
		entries, next, terminal, err := reg.LogsSince(jobID, offset)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := emit(e); err != nil {
				return err
			}
		}
		offset = next
		if terminal {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
