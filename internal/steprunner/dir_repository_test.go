package steprunner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"rigproc/internal/logging"
	"rigproc/internal/manifest"
	"rigproc/internal/options"
	"rigproc/internal/runtimebus"
	"rigproc/internal/services"
	"rigproc/internal/steprunner"
)

func writeUnit(t *testing.T, processDir, name, body string) {
	t.Helper()
	dir := filepath.Join(processDir, steprunner.StepsDir, filepath.FromSlash(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, steprunner.DescriptorFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirRepositoryListOrdersParentsFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rig", "build/skeleton", "build", "build-extra", "build/skeleton/ik"} {
		writeUnit(t, dir, name, "actions: ['true']\n")
	}
	if err := os.MkdirAll(filepath.Join(dir, steprunner.StepsDir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	names, err := steprunner.NewDirRepository(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"build", "build/skeleton", "build/skeleton/ik", "build-extra", "rig"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected list %v", names)
	}
}

func TestDirRepositoryListMissingRoot(t *testing.T) {
	names, err := steprunner.NewDirRepository(t.TempDir()).List()
	if err != nil || len(names) != 0 {
		t.Fatalf("expected empty list, got %v %v", names, err)
	}
}

func TestDirRepositoryActions(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "build", `
description: build skeleton
actions:
  - set("scale", option("scale", "rig") * 2)
  - skip()
  - get("scale")
`)
	store := options.New()
	if _, err := store.Add("scale", 2.0, "rig", options.TagPlain); err != nil {
		t.Fatal(err)
	}
	signals := &fakeSignals{}
	bus := runtimebus.New()
	facade := steprunner.NewContext(steprunner.FacadeOptions{Config: store, Runtime: bus, Signals: signals})

	runner := steprunner.New(steprunner.NewDirRepository(dir))
	result, err := runner.Run(context.Background(), "build", facade, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != steprunner.StatusSuccess {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Value != 4.0 {
		t.Fatalf("expected last action value 4, got %v", result.Value)
	}
	if signals.skips != 1 {
		t.Fatalf("expected skip request, got %d", signals.skips)
	}
}

func TestDirRepositoryActionsWriteThroughFacade(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "setup", `
actions:
  - set_option("scale", 3, "rig")
  - add_option("side", "left", "rig")
  - add_option("side", "right", "rig")
  - set_enabled("deform", true)
`)
	store, err := options.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	steps := manifest.NewStore(dir, logging.NewNop())
	if err := steps.SetManifest([]string{"setup", "deform"}, []bool{true, false}, false); err != nil {
		t.Fatal(err)
	}
	facade := steprunner.NewContext(steprunner.FacadeOptions{Config: store, Runtime: runtimebus.New(), Steps: steps})

	result, err := steprunner.New(steprunner.NewDirRepository(dir)).Run(context.Background(), "setup", facade, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Value != true {
		t.Fatalf("expected set_enabled to return the new state, got %v", result.Value)
	}

	reopened, err := options.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := reopened.Get("scale", "rig"); v != 3.0 {
		t.Fatalf("expected persisted scale 3, got %v (%T)", v, v)
	}
	if v, _ := reopened.Get("side", "rig"); v != "left" {
		t.Fatalf("expected add_option to keep first value, got %v", v)
	}
	if enabled, found := steps.State("deform"); !found || !enabled {
		t.Fatalf("expected deform enabled, got %v %v", enabled, found)
	}
}

func TestDirRepositoryCompileErrorIsLoadError(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "bad", "actions:\n  - 'set(\"a\",'\n")
	result, err := steprunner.New(steprunner.NewDirRepository(dir)).Run(context.Background(), "bad", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(result.Err, services.ErrLoad) {
		t.Fatalf("expected load error, got %v", result.Err)
	}
}

func TestDirRepositoryUnknownFieldIsLoadError(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "bad", "actoins: ['true']\n")
	result, _ := steprunner.New(steprunner.NewDirRepository(dir)).Run(context.Background(), "bad", nil, false)
	if !errors.Is(result.Err, services.ErrLoad) {
		t.Fatalf("expected load error, got %v", result.Err)
	}
}

func TestDirRepositoryFailIsRuntimeError(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "bad", "actions:\n  - fail(\"no skeleton\")\n")
	result, _ := steprunner.New(steprunner.NewDirRepository(dir)).Run(context.Background(), "bad", nil, false)
	if !errors.Is(result.Err, services.ErrRuntime) || !errors.Is(result.Err, steprunner.ErrStepFailed) {
		t.Fatalf("expected runtime failure, got %v", result.Err)
	}
	if !strings.Contains(result.Status, "no skeleton") {
		t.Fatalf("unexpected status %q", result.Status)
	}
}

func TestDirRepositoryCommand(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "echo", `
command: ["sh", "-c", "printf '%s' \"$RIGPROC_STEP:$RIG_SIDE\""]
env:
  RIG_SIDE: left
`)
	writeUnit(t, dir, "exit", `command: ["sh", "-c", "echo broken >&2; exit 3"]`+"\n")
	runner := steprunner.New(steprunner.NewDirRepository(dir))

	result, err := runner.Run(context.Background(), "echo", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Value != "echo:left" {
		t.Fatalf("unexpected command output %v (%+v)", result.Value, result)
	}

	result, _ = runner.Run(context.Background(), "exit", nil, false)
	if !errors.Is(result.Err, services.ErrRuntime) {
		t.Fatalf("expected runtime error, got %v", result.Err)
	}
	if !strings.Contains(result.Trace, "broken") {
		t.Fatalf("expected stderr in trace, got %q", result.Trace)
	}
}

func TestDirRepositoryCreateDelete(t *testing.T) {
	dir := t.TempDir()
	repo := steprunner.NewDirRepository(dir)
	if _, err := repo.Create("build/rig", steprunner.Descriptor{Actions: []string{`log("hi")`}}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create("build/rig", steprunner.Descriptor{Actions: []string{"true"}}); err == nil {
		t.Fatal("expected duplicate create to fail")
	}
	if _, err := repo.Create("../escape", steprunner.Descriptor{Actions: []string{"true"}}); err == nil {
		t.Fatal("expected invalid name to fail")
	}
	if _, err := repo.Find("build/rig"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete("build/rig"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Find("build/rig"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
