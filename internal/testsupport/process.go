package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rigproc/internal/config"
	"rigproc/internal/manifest"
	"rigproc/internal/steprunner"
)

// Step describes one unit written by NewProcess.
type Step struct {
	Name    string
	Enabled bool
	Actions []string
	Command []string
}

// NewProcess creates process name under cfg's process root. Units are
// written for every step and the manifest lists them in order.
func NewProcess(t testing.TB, cfg *config.Config, name string, steps ...Step) string {
	t.Helper()
	dir, err := cfg.ProcessPath(name)
	if err != nil {
		t.Fatalf("process path: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir process: %v", err)
	}
	repo := steprunner.NewDirRepository(dir)
	var manifestText strings.Builder
	for _, step := range steps {
		desc := steprunner.Descriptor{Actions: step.Actions, Command: step.Command}
		if len(desc.Actions) == 0 && len(desc.Command) == 0 {
			desc.Actions = []string{"true"}
		}
		if _, err := repo.Create(step.Name, desc); err != nil {
			t.Fatalf("create step %s: %v", step.Name, err)
		}
		state := "False"
		if step.Enabled {
			state = "True"
		}
		manifestText.WriteString(step.Name + " " + state + "\n")
	}
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(manifestText.String()), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}
