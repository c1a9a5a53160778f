package job

import (
	"errors"
	"sync"
	"testing"
)

func TestCreateAndSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	rec, err := r.Create("job-1", Flags{GenerateUnit: true}, "/tmp/work/job-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != StatusPending || rec.Progress != 0 {
		t.Fatalf("unexpected initial record: %#v", rec)
	}

	snap, err := r.Snapshot("job-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.ID != "job-1" || !snap.Flags.GenerateUnit {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}

	// The snapshot is a copy; mutating it must not leak back.
	snap.Logs = append(snap.Logs, LogEntry{Message: "tampered"})
	again, _ := r.Snapshot("job-1")
	if len(again.Logs) != 0 {
		t.Fatalf("snapshot mutation leaked into registry")
	}
}

func TestCreateDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Create("job-1", Flags{}, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create("job-1", Flags{}, ""); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestSnapshotUnknown(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Snapshot("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProgressTransitionsAndClamps(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("job-1", Flags{}, "")

	if err := r.UpdateProgress("job-1", 150, "Fetching", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	snap, _ := r.Snapshot("job-1")
	if snap.Progress != 100 {
		t.Fatalf("expected clamp to 100, got %d", snap.Progress)
	}

	r2 := NewRegistry(nil)
	r2.Create("job-2", Flags{}, "")
	r2.UpdateProgress("job-2", 5, "Fetching repository", "")
	snap, _ = r2.Snapshot("job-2")
	if snap.Status != StatusRunning || snap.Progress != 5 {
		t.Fatalf("expected running@5, got %s@%d", snap.Status, snap.Progress)
	}
	if snap.Message != "Fetching repository" {
		t.Fatalf("expected label as message, got %q", snap.Message)
	}
}

func TestProgressMonotonic(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("job-1", Flags{}, "")
	r.UpdateProgress("job-1", 55, "Generating", "")
	r.UpdateProgress("job-1", 25, "Scanning", "")
	snap, _ := r.Snapshot("job-1")
	if snap.Progress != 55 {
		t.Fatalf("progress regressed to %d", snap.Progress)
	}
	if len(snap.Logs) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(snap.Logs))
	}
}

func TestMarkSucceededIsTerminal(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("job-1", Flags{}, "")
	r.UpdateProgress("job-1", 85, "Packaging", "")

	if err := r.MarkSucceeded("job-1", "/artifacts/job-1-tests.zip"); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	snap, _ := r.Snapshot("job-1")
	if snap.Status != StatusSucceeded || snap.Progress != 100 || snap.ArtifactPath == "" {
		t.Fatalf("unexpected terminal record: %#v", snap)
	}

	if err := r.MarkSucceeded("job-1", "other.zip"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := r.MarkFailed("job-1", "late failure"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}

	// Terminal records still accept diagnostic log appends but nothing else.
	r.UpdateProgress("job-1", 10, "late", "diagnostic")
	snap, _ = r.Snapshot("job-1")
	if snap.Status != StatusSucceeded || snap.Progress != 100 {
		t.Fatalf("terminal record mutated: %#v", snap)
	}
	last := snap.Logs[len(snap.Logs)-1]
	if last.Message != "diagnostic" {
		t.Fatalf("expected diagnostic append, got %#v", last)
	}
}

func TestMarkFailedFreezesProgress(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("job-1", Flags{}, "")
	r.UpdateProgress("job-1", 25, "Scanning", "")

	if err := r.MarkFailed("job-1", "no java files"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	snap, _ := r.Snapshot("job-1")
	if snap.Status != StatusFailed || snap.Progress != 25 {
		t.Fatalf("expected failed@25, got %s@%d", snap.Status, snap.Progress)
	}
	if snap.Failure != "no java files" {
		t.Fatalf("unexpected failure detail: %q", snap.Failure)
	}
}

func TestLogsSinceCursor(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("job-1", Flags{}, "")
	r.UpdateProgress("job-1", 5, "a", "")
	r.UpdateProgress("job-1", 25, "b", "")

	entries, offset, terminal, err := r.LogsSince("job-1", 0)
	if err != nil {
		t.Fatalf("logs since: %v", err)
	}
	if len(entries) != 2 || offset != 2 || terminal {
		t.Fatalf("unexpected first read: %d entries offset=%d terminal=%v", len(entries), offset, terminal)
	}

	entries, offset, _, _ = r.LogsSince("job-1", offset)
	if len(entries) != 0 || offset != 2 {
		t.Fatalf("expected empty follow-up read, got %d", len(entries))
	}

	r.MarkSucceeded("job-1", "a.zip")
	entries, offset, terminal, _ = r.LogsSince("job-1", offset)
	if len(entries) != 1 || !terminal {
		t.Fatalf("expected terminal entry, got %d terminal=%v", len(entries), terminal)
	}
	_ = offset
}

func TestConcurrentUpdatesAndSnapshots(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("job-1", Flags{}, "")
	r.Create("job-2", Flags{}, "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		pct := i * 2
		go func() {
			defer wg.Done()
			r.UpdateProgress("job-1", pct, "working", "")
		}()
		go func() {
			defer wg.Done()
			if _, err := r.Snapshot("job-1"); err != nil {
				t.Errorf("snapshot: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, _ := r.Snapshot("job-1")
	if len(snap.Logs) != 50 {
		t.Fatalf("expected 50 log entries, got %d", len(snap.Logs))
	}
	other, _ := r.Snapshot("job-2")
	if len(other.Logs) != 0 {
		t.Fatalf("unrelated job mutated: %#v", other)
	}
}
