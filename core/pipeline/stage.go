package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/atomiq/atomiq/core/infra/logging"
	"github.com/atomiq/atomiq/core/infra/metrics"
)

// Stage is one step of a job pipeline. Percent is the fixed checkpoint
// reported before the stage runs. A Required stage aborts the pipeline
// on error; an optional stage falls back instead.
type Stage struct {
	Name     string
	Label    string
	Percent  int
	Required bool
	Run      func(ctx context.Context) error
	Fallback func(ctx context.Context) error
}

// ProgressFunc receives each checkpoint before its stage executes.
type ProgressFunc func(percent int, label string)

func runStages(ctx context.Context, stages []Stage, progress ProgressFunc, m metrics.Metrics) error {
	for _, st := range stages {
		progress(st.Percent, st.Label)
		start := time.Now()
		err := st.Run(ctx)
		m.ObserveStageDuration(st.Name, time.Since(start).Seconds())
		if err == nil {
			continue
		}
		if st.Required || st.Fallback == nil {
			return fmt.Errorf("%s: %w", st.Name, err)
		}
		logging.Warn("pipeline", "optional stage failed, using fallback", "stage", st.Name, "error", err)
		progress(st.Percent, "Warning: "+st.Label+" failed; using fallback")
		if ferr := st.Fallback(ctx); ferr != nil {
			return fmt.Errorf("%s fallback: %w", st.Name, ferr)
		}
	}
	return nil
}
