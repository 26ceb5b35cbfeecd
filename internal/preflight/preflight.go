package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"rigproc/internal/deps"
	"rigproc/internal/manifest"
	"rigproc/internal/options"
	"rigproc/internal/steprunner"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes every check against the process at processPath.
func RunAll(ctx context.Context, processPath string) []Result {
	dirCheck := CheckDirectoryAccess("Process directory", processPath)
	results := []Result{dirCheck}
	if !dirCheck.Passed {
		return results
	}

	store := manifest.NewStore(processPath, nil)
	entries, err := store.Entries()
	if err != nil {
		results = append(results, Result{Name: "Manifest", Detail: err.Error()})
		return results
	}
	results = append(results, Result{Name: "Manifest", Passed: true, Detail: fmt.Sprintf("%d steps", len(entries))})
	results = append(results, CheckOrphans(entries))

	if _, err := options.Open(processPath); err != nil {
		results = append(results, Result{Name: "Options", Detail: err.Error()})
	} else {
		results = append(results, Result{Name: "Options", Passed: true, Detail: "readable"})
	}

	repo := steprunner.NewDirRepository(processPath)
	results = append(results, CheckUnits(ctx, repo, entries)...)
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOrphans reports manifest entries whose parent is missing. Orphans are
// never run.
func CheckOrphans(entries []manifest.Entry) Result {
	tree := manifest.BuildTree(entries)
	if len(tree.Orphans) == 0 {
		return Result{Name: "Hierarchy", Passed: true, Detail: "every step has its parent"}
	}
	names := make([]string, 0, len(tree.Orphans))
	for _, node := range tree.Orphans {
		names = append(names, node.Name)
	}
	return Result{Name: "Hierarchy", Detail: "orphaned steps: " + strings.Join(names, ", ")}
}

// CheckUnits loads every manifest entry through repo and checks the
// executables of command steps.
func CheckUnits(ctx context.Context, repo *steprunner.DirRepository, entries []manifest.Entry) []Result {
	var (
		results      []Result
		requirements []deps.Requirement
	)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		name := "Step " + entry.Name
		handle, err := repo.Find(entry.Name)
		if err != nil {
			results = append(results, Result{Name: name, Detail: err.Error()})
			continue
		}
		if _, err := repo.Load(handle); err != nil {
			results = append(results, Result{Name: name, Detail: err.Error()})
			continue
		}
		desc, err := steprunner.ReadDescriptor(handle.Path)
		if err == nil && len(desc.Command) > 0 {
			requirements = append(requirements, deps.Requirement{
				Name:     entry.Name,
				Command:  desc.Command[0],
				Dir:      repo.UnitDir(entry.Name),
				Optional: !entry.Enabled,
			})
		}
	}
	for _, status := range deps.CheckBinaries(requirements) {
		if status.Available {
			continue
		}
		results = append(results, Result{
			Name:   "Command " + status.Name,
			Passed: status.Optional,
			Detail: status.Detail,
		})
	}
	if len(results) == 0 {
		results = append(results, Result{Name: "Steps", Passed: true, Detail: fmt.Sprintf("%d units load", len(entries))})
	}
	return results
}
