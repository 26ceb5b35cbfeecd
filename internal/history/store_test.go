package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"rigproc/internal/history"
	"rigproc/internal/orchestrator"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history", "rigproc.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(id string, started time.Time) orchestrator.Report {
	return orchestrator.Report{
		RunID:   id,
		Process: "build",
		Started: started,
		Elapsed: 1500 * time.Millisecond,
		Results: []orchestrator.StepResult{
			{Name: "a", Status: orchestrator.StatusSuccess, Duration: 20 * time.Millisecond},
			{Name: "a/b", Status: orchestrator.StatusFailed, Detail: "boom", Duration: 5 * time.Millisecond},
			{Name: "c", Status: orchestrator.StatusSkipped, Detail: "disabled"},
		},
	}
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, sampleReport("run-old", base)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, sampleReport("run-new", base.Add(time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := store.Runs(ctx, "", 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-new" {
		t.Fatalf("expected newest first, got %s", runs[0].ID)
	}
	if runs[0].Outcome != "failed" {
		t.Fatalf("expected failed outcome, got %q", runs[0].Outcome)
	}
	if runs[0].Failures != 1 {
		t.Fatalf("expected 1 failure, got %d", runs[0].Failures)
	}
	if runs[0].Elapsed != 1500*time.Millisecond {
		t.Fatalf("unexpected elapsed %v", runs[0].Elapsed)
	}
	if !runs[0].Started.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected start %v", runs[0].Started)
	}
}

func TestRunsFiltersByProcess(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	report := sampleReport("one", time.Now())
	if err := store.Record(ctx, report); err != nil {
		t.Fatalf("Record: %v", err)
	}
	other := sampleReport("two", time.Now())
	other.Process = "deploy"
	if err := store.Record(ctx, other); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := store.Runs(ctx, "deploy", 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "two" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestStepsByPrefix(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleReport("abc123", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}

	id, steps, err := store.Steps(ctx, "abc")
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected full id, got %s", id)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[1].Name != "a/b" || steps[1].Status != "Failed" || steps[1].Detail != "boom" {
		t.Fatalf("unexpected step %+v", steps[1])
	}
	if steps[2].Duration != 0 {
		t.Fatalf("expected zero duration for skipped step, got %v", steps[2].Duration)
	}

	if _, _, err := store.Steps(ctx, "zzz"); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestRecordRejectsDuplicateRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	report := sampleReport("dup", time.Now())
	if err := store.Record(ctx, report); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, report); err == nil {
		t.Fatal("expected duplicate run id to fail")
	}
	_, steps, err := store.Steps(ctx, "dup")
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("failed insert must not add steps, got %d", len(steps))
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"r1", "r2", "r3"} {
		if err := store.Record(ctx, sampleReport(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	removed, err := store.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	runs, err := store.Runs(ctx, "", 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r3" {
		t.Fatalf("unexpected runs after prune %+v", runs)
	}
	if _, _, err := store.Steps(ctx, "r1"); err == nil {
		t.Fatal("expected pruned run to be gone")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rigproc.db")
	ctx := context.Background()
	store, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Record(ctx, sampleReport("keep", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	reopened, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.Runs(ctx, "", 5)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected persisted run, got %d", len(runs))
	}
}

func TestRecordStoppedRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	report := orchestrator.Report{RunID: "stopped", Process: "build", Started: time.Now(), Stopped: true, Strict: true, Only: "a"}
	if err := store.Record(ctx, report); err != nil {
		t.Fatalf("Record: %v", err)
	}
	runs, err := store.Runs(ctx, "build", 1)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if !runs[0].Stopped || !runs[0].Strict || runs[0].Only != "a" || runs[0].Outcome != "stopped" {
		t.Fatalf("unexpected run %+v", runs[0])
	}
}
