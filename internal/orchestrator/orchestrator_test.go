package orchestrator_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"rigproc/internal/logging"
	"rigproc/internal/manifest"
	"rigproc/internal/options"
	"rigproc/internal/orchestrator"
	"rigproc/internal/services"
	"rigproc/internal/signals"
	"rigproc/internal/steprunner"
)

type harness struct {
	dir      string
	manifest *manifest.Store
	registry *steprunner.Registry
	signals  *signals.Controller
	calls    []string
	orch     *orchestrator.Orchestrator
	sink     *captureSink
}

type captureSink struct{ reports []orchestrator.Report }

func (c *captureSink) Record(_ context.Context, r orchestrator.Report) error {
	c.reports = append(c.reports, r)
	return nil
}

func newHarness(t *testing.T, lines ...string) *harness {
	t.Helper()
	t.Setenv(signals.EnvStop, "")
	dir := t.TempDir()
	h := &harness{
		dir:      dir,
		manifest: manifest.NewStore(dir, logging.NewNop()),
		registry: steprunner.NewRegistry(),
		sink:     &captureSink{},
	}
	names := make([]string, 0, len(lines))
	states := make([]bool, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		names = append(names, fields[0])
		states = append(states, fields[1] == "True")
	}
	if err := h.manifest.SetManifest(names, states, false); err != nil {
		t.Fatal(err)
	}
	ctl, err := signals.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	h.signals = ctl

	orch, err := orchestrator.New(orchestrator.Options{
		Process:     "character",
		ProcessPath: dir,
		Manifest:    h.manifest,
		Config:      options.New(),
		Runner:      steprunner.New(h.registry),
		Signals:     ctl,
		Sinks:       []orchestrator.ReportSink{h.sink},
	})
	if err != nil {
		t.Fatal(err)
	}
	h.orch = orch
	return h
}

// step registers a recording entry that runs fn after logging the call.
func (h *harness) step(name string, fn steprunner.EntryFunc) {
	h.registry.MustRegister(name, func(ctx context.Context, step *steprunner.Context) (any, error) {
		h.calls = append(h.calls, name)
		if fn == nil {
			return nil, nil
		}
		return fn(ctx, step)
	})
}

func (h *harness) steps(names ...string) {
	for _, name := range names {
		h.step(name, nil)
	}
}

func statuses(pairs ...string) [][2]string {
	out := make([][2]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, [2]string{pairs[i], pairs[i+1]})
	}
	return out
}

func assertStatuses(t *testing.T, report orchestrator.Report, want [][2]string) {
	t.Helper()
	if got := report.Statuses(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected statuses\n got: %v\nwant: %v", got, want)
	}
}

func TestDisabledParentHidesSubtree(t *testing.T) {
	h := newHarness(t, "a False", "a/b False", "c True")
	h.steps("a", "a/b", "c")

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertStatuses(t, report, statuses("a", "Skipped", "c", "Success"))
	if !reflect.DeepEqual(h.calls, []string{"c"}) {
		t.Fatalf("unexpected calls %v", h.calls)
	}
}

func TestDisabledAncestorNeverInvokesDescendants(t *testing.T) {
	h := newHarness(t, "a False", "a/b True", "a/b/c True", "d True", "d/e True")
	h.steps("a", "a/b", "a/b/c", "d", "d/e")

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, call := range h.calls {
		if strings.HasPrefix(call, "a") {
			t.Fatalf("descendant of disabled step invoked: %v", h.calls)
		}
	}
	assertStatuses(t, report, statuses("a", "Skipped", "d", "Success", "d/e", "Success"))
}

func TestSkipRequestSkipsChildrenForOneRun(t *testing.T) {
	h := newHarness(t, "build True", "build/rig True", "build/rig/ik True", "other True")
	skip := true
	h.step("build", func(_ context.Context, step *steprunner.Context) (any, error) {
		if skip {
			step.Skip()
		}
		return nil, nil
	})
	h.steps("build/rig", "build/rig/ik", "other")

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	assertStatuses(t, report, statuses(
		"build", "Success",
		"build/rig", "Skipped",
		"other", "Success",
	))

	skip = false
	h.calls = nil
	report, err = h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	assertStatuses(t, report, statuses(
		"build", "Success",
		"build/rig", "Success",
		"build/rig/ik", "Success",
		"other", "Success",
	))
}

func TestSkipRequestFromLastStepDoesNotLeak(t *testing.T) {
	h := newHarness(t, "a True", "b True", "b/c True")
	first := true
	h.step("a", nil)
	h.step("b", func(_ context.Context, step *steprunner.Context) (any, error) {
		if first {
			first = false
			step.Skip()
		}
		return nil, nil
	})
	h.step("b/c", nil)

	if _, err := h.orch.Run(context.Background(), orchestrator.RunOptions{}); err != nil {
		t.Fatal(err)
	}
	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	assertStatuses(t, report, statuses("a", "Success", "b", "Success", "b/c", "Success"))
}

func TestFailedStepSkipsItsChildrenAndContinues(t *testing.T) {
	h := newHarness(t, "a True", "a/b True", "c True")
	h.step("a", func(context.Context, *steprunner.Context) (any, error) {
		return nil, errors.New("no joints")
	})
	h.steps("a/b", "c")

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatalf("soft run must not return error: %v", err)
	}
	assertStatuses(t, report, statuses("a", "Failed", "c", "Success"))
	failures := report.Failures()
	if len(failures) != 1 || !strings.Contains(failures[0].Detail, "no joints") {
		t.Fatalf("unexpected failures %+v", failures)
	}
	if report.Outcome() != "failed" {
		t.Fatalf("unexpected outcome %q", report.Outcome())
	}
}

func TestStrictRunAbortsAtFirstFailure(t *testing.T) {
	h := newHarness(t, "a True", "b True", "c True")
	h.step("a", nil)
	h.step("b", func(context.Context, *steprunner.Context) (any, error) {
		return nil, errors.New("boom")
	})
	h.step("c", nil)

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{Strict: true})
	if err == nil || !errors.Is(err, services.ErrRuntime) {
		t.Fatalf("expected runtime error, got %v", err)
	}
	assertStatuses(t, report, statuses("a", "Success", "b", "Failed"))
	if !report.Strict || report.Outcome() != "aborted" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestLoadErrorIsRecorded(t *testing.T) {
	h := newHarness(t, "missing True", "b True")
	h.steps("b")

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	assertStatuses(t, report, statuses("missing", "Failed", "b", "Success"))
}

func TestStopRequestAbortsRemainder(t *testing.T) {
	h := newHarness(t, "a True", "b True", "c True")
	h.step("a", nil)
	h.step("b", func(context.Context, *steprunner.Context) (any, error) {
		return nil, h.signals.RequestStop()
	})
	h.step("c", nil)

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatalf("stop must not be an error: %v", err)
	}
	if !report.Stopped {
		t.Fatal("expected stopped report")
	}
	assertStatuses(t, report, statuses("a", "Success", "b", "Success"))
	if len(report.Failures()) != 0 {
		t.Fatal("completed steps must not be marked failed")
	}
}

func TestStaleStopRequestIsClearedAtRunStart(t *testing.T) {
	h := newHarness(t, "a True")
	h.steps("a")
	if err := h.signals.RequestStop(); err != nil {
		t.Fatal(err)
	}
	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stopped {
		t.Fatal("stale stop request should be cleared")
	}
	assertStatuses(t, report, statuses("a", "Success"))
}

func TestStepPollsStopRequest(t *testing.T) {
	h := newHarness(t, "a True", "b True")
	h.step("a", func(ctx context.Context, step *steprunner.Context) (any, error) {
		t.Setenv(signals.EnvStop, "1")
		if !step.StopRequested() {
			t.Fatal("expected stop to be visible through the facade")
		}
		return nil, services.ErrStopRequested
	})
	h.step("b", nil)

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	assertStatuses(t, report, statuses("a", "Stopped"))
	if !report.Stopped || report.Outcome() != "stopped" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestContextCancellationStopsRun(t *testing.T) {
	h := newHarness(t, "a True", "b True")
	ctx, cancel := context.WithCancel(context.Background())
	h.step("a", func(context.Context, *steprunner.Context) (any, error) {
		cancel()
		return nil, nil
	})
	h.step("b", nil)

	report, err := h.orch.Run(ctx, orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Stopped {
		t.Fatal("expected stopped report")
	}
	if !reflect.DeepEqual(h.calls, []string{"a"}) {
		t.Fatalf("unexpected calls %v", h.calls)
	}
}

func TestRuntimeValuesFlowAndReset(t *testing.T) {
	h := newHarness(t, "a True", "b True")
	var seen []any
	h.step("a", func(_ context.Context, step *steprunner.Context) (any, error) {
		if v, ok := step.Fetch("joints"); ok {
			seen = append(seen, v)
		}
		step.Put("joints", 3)
		return nil, nil
	})
	h.step("b", func(_ context.Context, step *steprunner.Context) (any, error) {
		v, _ := step.Fetch("joints")
		seen = append(seen, v)
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		if _, err := h.orch.Run(context.Background(), orchestrator.RunOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(seen, []any{3, 3}) {
		t.Fatalf("runtime values leaked or were lost: %v", seen)
	}
}

func TestOnlyRunsSubtree(t *testing.T) {
	h := newHarness(t, "a True", "b False", "b/c True", "b/d False")
	h.steps("a", "b", "b/c", "b/d")

	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{Only: "b"})
	if err != nil {
		t.Fatal(err)
	}
	assertStatuses(t, report, statuses("b", "Success", "b/c", "Success", "b/d", "Skipped"))

	if _, err := h.orch.Run(context.Background(), orchestrator.RunOptions{Only: "zzz"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentRunRefused(t *testing.T) {
	h := newHarness(t, "a True")
	h.steps("a")

	other, err := signals.Open(h.dir)
	if err != nil {
		t.Fatal(err)
	}
	lock, err := other.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lock.Release() }()

	if _, err := h.orch.Run(context.Background(), orchestrator.RunOptions{}); !errors.Is(err, services.ErrRunInProgress) {
		t.Fatalf("expected run in progress, got %v", err)
	}
}

func TestSinksReceiveReport(t *testing.T) {
	h := newHarness(t, "a True")
	h.steps("a")
	report, err := h.orch.Run(context.Background(), orchestrator.RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.sink.reports) != 1 || h.sink.reports[0].RunID != report.RunID || report.RunID == "" {
		t.Fatalf("unexpected sink reports %+v", h.sink.reports)
	}
	if report.Process != "character" || report.Elapsed <= 0 {
		t.Fatalf("unexpected report metadata %+v", report)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := orchestrator.New(orchestrator.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
