package main

import (
	"testing"

	"rigproc/internal/testsupport"
)

func TestDoctorHealthyProcess(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewProcess(t, env.cfg, "demo", demoSteps()...)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Process demo")
}

func TestDoctorReportsProblems(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewProcess(t, env.cfg, "demo",
		testsupport.Step{Name: "a", Enabled: true, Actions: []string{"nope("}},
		testsupport.Step{Name: "x/y", Enabled: true},
	)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatalf("expected doctor to fail:\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "orphaned steps: x/y")
}
