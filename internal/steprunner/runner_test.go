package steprunner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"rigproc/internal/options"
	"rigproc/internal/runtimebus"
	"rigproc/internal/services"
	"rigproc/internal/steprunner"
)

type fakeSignals struct {
	skips int
	stop  bool
}

func (f *fakeSignals) RequestSkip()        { f.skips++ }
func (f *fakeSignals) StopRequested() bool { return f.stop }

func newFacade(signals steprunner.Signals) *steprunner.Context {
	return steprunner.NewContext(steprunner.FacadeOptions{
		Process: "character",
		Config:  options.New(),
		Runtime: runtimebus.New(),
		Signals: signals,
	})
}

func TestRunSuccessReturnsValue(t *testing.T) {
	reg := steprunner.NewRegistry().MustRegister("build", func(ctx context.Context, step *steprunner.Context) (any, error) {
		if step.Step != "build" {
			t.Fatalf("facade not scoped to step: %q", step.Step)
		}
		step.Put("joints", 3)
		return "ok", nil
	})
	runner := steprunner.New(reg)
	facade := newFacade(&fakeSignals{})

	result, err := runner.Run(context.Background(), "build", facade, false)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != steprunner.StatusSuccess || result.Value != "ok" || result.Failed() {
		t.Fatalf("unexpected result %+v", result)
	}
	if v, ok := facade.Fetch("joints"); !ok || v != 3 {
		t.Fatalf("expected runtime value shared through facade, got %v %v", v, ok)
	}
}

func TestStepWritesOptionReadByLaterStep(t *testing.T) {
	reg := steprunner.NewRegistry().
		MustRegister("measure", func(ctx context.Context, step *steprunner.Context) (any, error) {
			if err := step.SetOption("height", 1.8, "rig"); err != nil {
				return nil, err
			}
			return step.AddOption("side", "left", "rig")
		}).
		MustRegister("build", func(ctx context.Context, step *steprunner.Context) (any, error) {
			return step.Option("height", "rig"), nil
		})
	runner := steprunner.New(reg)
	facade := newFacade(&fakeSignals{})

	measured, err := runner.Run(context.Background(), "measure", facade, true)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if measured.Value != true {
		t.Fatalf("expected new option to be added, got %v", measured.Value)
	}
	built, err := runner.Run(context.Background(), "build", facade, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if built.Value != 1.8 {
		t.Fatalf("expected option written by earlier step, got %v", built.Value)
	}
	if !facade.HasOption("side", "rig") {
		t.Fatal("expected added option to resolve")
	}
}

func TestRunDistinguishesLoadAndRuntimeErrors(t *testing.T) {
	reg := steprunner.NewRegistry().MustRegister("broken", func(context.Context, *steprunner.Context) (any, error) {
		return nil, errors.New("joint missing")
	})
	runner := steprunner.New(reg)

	missing, err := runner.Run(context.Background(), "absent", nil, false)
	if err != nil {
		t.Fatalf("soft mode must not return error: %v", err)
	}
	if !errors.Is(missing.Err, services.ErrLoad) || !errors.Is(missing.Err, services.ErrNotFound) {
		t.Fatalf("expected load/not-found error, got %v", missing.Err)
	}

	failed, err := runner.Run(context.Background(), "broken", nil, false)
	if err != nil {
		t.Fatalf("soft mode must not return error: %v", err)
	}
	if !errors.Is(failed.Err, services.ErrRuntime) {
		t.Fatalf("expected runtime error, got %v", failed.Err)
	}
	if !strings.Contains(failed.Status, "joint missing") || failed.Trace == "" {
		t.Fatalf("expected failure description and trace, got %+v", failed)
	}
}

func TestRunHardErrorReturnsAfterRecording(t *testing.T) {
	reg := steprunner.NewRegistry().MustRegister("broken", func(context.Context, *steprunner.Context) (any, error) {
		return nil, errors.New("boom")
	})
	result, err := steprunner.New(reg).Run(context.Background(), "broken", nil, true)
	if err == nil {
		t.Fatal("expected error in hard mode")
	}
	if result.Status == steprunner.StatusSuccess || result.Err == nil {
		t.Fatalf("expected failure recorded in result, got %+v", result)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	reg := steprunner.NewRegistry().MustRegister("panics", func(context.Context, *steprunner.Context) (any, error) {
		panic("bad rig")
	})
	result, err := steprunner.New(reg).Run(context.Background(), "panics", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(result.Err, services.ErrRuntime) || !strings.Contains(result.Status, "bad rig") {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(result.Trace, "goroutine") {
		t.Fatalf("expected stack trace, got %q", result.Trace)
	}
}

func TestRunStopIsNotFailure(t *testing.T) {
	reg := steprunner.NewRegistry().MustRegister("long", func(context.Context, *steprunner.Context) (any, error) {
		return nil, services.ErrStopRequested
	})
	result, err := steprunner.New(reg).Run(context.Background(), "long", nil, true)
	if err != nil {
		t.Fatalf("stop must not be raised: %v", err)
	}
	if !result.Stopped() || result.Failed() {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunWrapsTransactions(t *testing.T) {
	reg := steprunner.NewRegistry().
		MustRegister("good", func(context.Context, *steprunner.Context) (any, error) { return nil, nil }).
		MustRegister("bad", func(context.Context, *steprunner.Context) (any, error) { return nil, errors.New("x") })

	var buf bytes.Buffer
	journal := steprunner.NewJournal(&buf, "run-1")
	var rolledBack []string
	journal.OnRollback = func(step string) { rolledBack = append(rolledBack, step) }

	runner := steprunner.New(reg, steprunner.WithTransactor(journal))
	for _, name := range []string{"good", "bad"} {
		if _, err := runner.Run(context.Background(), name, nil, false); err != nil {
			t.Fatal(err)
		}
	}

	var types []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var evt steprunner.JournalEvent
		if err := dec.Decode(&evt); err != nil {
			t.Fatal(err)
		}
		if evt.RunID != "run-1" {
			t.Fatalf("unexpected run id %q", evt.RunID)
		}
		types = append(types, evt.Type+":"+evt.Step)
	}
	want := []string{
		"transaction_open:good", "transaction_commit:good",
		"transaction_open:bad", "transaction_rollback:bad",
	}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected journal %v", types)
	}
	if len(rolledBack) != 1 || rolledBack[0] != "bad" {
		t.Fatalf("unexpected rollbacks %v", rolledBack)
	}
}

func TestFacadeSkipAndStop(t *testing.T) {
	signals := &fakeSignals{stop: true}
	reg := steprunner.NewRegistry().MustRegister("build", func(_ context.Context, step *steprunner.Context) (any, error) {
		step.Skip()
		return step.StopRequested(), nil
	})
	result, err := steprunner.New(reg).Run(context.Background(), "build", newFacade(signals), false)
	if err != nil {
		t.Fatal(err)
	}
	if signals.skips != 1 || result.Value != true {
		t.Fatalf("unexpected signals %+v result %+v", signals, result)
	}
}

func TestRegistryRejectsInvalid(t *testing.T) {
	reg := steprunner.NewRegistry()
	if err := reg.Register("", func(context.Context, *steprunner.Context) (any, error) { return nil, nil }); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := reg.Register("a", nil); err == nil {
		t.Fatal("expected error for nil func")
	}
}
