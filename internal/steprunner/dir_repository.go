package steprunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"rigproc/internal/services"
	"rigproc/internal/signals"
)

// StepsDir is the directory of step units inside a process directory.
const StepsDir = "steps"

// EnvStep names the running step in a command's environment.
const EnvStep = "RIGPROC_STEP"

// DirRepository loads step units from <process>/steps/<name>/step.yaml.
type DirRepository struct {
	root        string
	processPath string
	commandEnv  map[string]string
}

// NewDirRepository returns a repository rooted at the steps directory of processPath.
func NewDirRepository(processPath string) *DirRepository {
	return &DirRepository{root: filepath.Join(processPath, StepsDir), processPath: processPath}
}

// SetCommandEnv adds env to the environment of every step command.
func (r *DirRepository) SetCommandEnv(env map[string]string) {
	r.commandEnv = env
}

// Root returns the steps directory.
func (r *DirRepository) Root() string {
	return r.root
}

// UnitDir returns the directory that holds name's unit.
func (r *DirRepository) UnitDir(name string) string {
	return filepath.Join(r.root, filepath.FromSlash(name))
}

func (r *DirRepository) Find(name string) (Handle, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" || strings.Contains(name, "..") {
		return Handle{}, services.Wrap(services.ErrValidation, name, "find step", "invalid step name", nil)
	}
	path := filepath.Join(r.UnitDir(name), DescriptorFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Handle{}, services.Wrap(services.ErrNotFound, name, "find step", "no "+DescriptorFile, nil)
		}
		return Handle{}, err
	}
	return Handle{Name: name, Path: path}, nil
}

func (r *DirRepository) Load(handle Handle) (EntryFunc, error) {
	desc, err := ReadDescriptor(handle.Path)
	if err != nil {
		return nil, err
	}
	programs := make([]*vm.Program, 0, len(desc.Actions))
	compileEnv := actionEnv(context.Background(), nil)
	for i, src := range desc.Actions {
		program, err := expr.Compile(src, expr.Env(compileEnv))
		if err != nil {
			return nil, fmt.Errorf("compile action %d: %w", i+1, err)
		}
		programs = append(programs, program)
	}
	unit := &dirUnit{
		name:        handle.Name,
		dir:         filepath.Dir(handle.Path),
		processPath: r.processPath,
		baseEnv:     r.commandEnv,
		desc:        desc,
		programs:    programs,
	}
	return unit.run, nil
}

// List returns every unit under the steps directory. Parents sort before
// their children.
func (r *DirRepository) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == r.root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != DescriptorFile {
			return nil
		}
		rel, err := filepath.Rel(r.root, filepath.Dir(path))
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(names, func(i, j int) bool {
		return lessPath(names[i], names[j])
	})
	return names, nil
}

// Create authors a new unit with desc. It fails when the unit already exists.
func (r *DirRepository) Create(name string, desc Descriptor) (Handle, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" || strings.Contains(name, "..") || name == "manifest" {
		return Handle{}, services.Wrap(services.ErrValidation, name, "create step", "invalid step name", nil)
	}
	path := filepath.Join(r.UnitDir(name), DescriptorFile)
	if _, err := os.Stat(path); err == nil {
		return Handle{}, services.Wrap(services.ErrValidation, name, "create step", "step already exists", nil)
	}
	if err := WriteDescriptor(path, desc); err != nil {
		return Handle{}, fmt.Errorf("write descriptor: %w", err)
	}
	return Handle{Name: name, Path: path}, nil
}

// Delete removes the unit directory of name and everything nested below it.
func (r *DirRepository) Delete(name string) error {
	handle, err := r.Find(name)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Dir(handle.Path))
}

// lessPath orders slash paths segment by segment so "a/b" sorts right after "a".
func lessPath(a, b string) bool {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

type dirUnit struct {
	name        string
	dir         string
	processPath string
	baseEnv     map[string]string
	desc        Descriptor
	programs    []*vm.Program
}

func (u *dirUnit) run(ctx context.Context, step *Context) (any, error) {
	env := actionEnv(ctx, step)
	var last any
	for i, program := range u.programs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		last = out
	}
	if len(u.desc.Command) == 0 {
		return last, nil
	}
	stdout, err := u.runCommand(ctx)
	if err != nil {
		return nil, err
	}
	if len(u.programs) == 0 {
		return stdout, nil
	}
	return last, nil
}

func (u *dirUnit) runCommand(ctx context.Context) (string, error) {
	argv := u.desc.Command
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = u.dir
	cmd.Env = os.Environ()
	cmd.Env = appendEnv(cmd.Env, u.baseEnv)
	cmd.Env = appendEnv(cmd.Env, u.desc.Env)
	cmd.Env = append(cmd.Env,
		signals.EnvProcessPath+"="+u.processPath,
		EnvStep+"="+u.name,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &CommandError{Argv: argv, Err: err, Stderr: tail(stderr.String(), 20)}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func appendEnv(dst []string, env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		dst = append(dst, k+"="+env[k])
	}
	return dst
}

// CommandError reports a step command that exited unsuccessfully.
type CommandError struct {
	Argv   []string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func tail(text string, lines int) string {
	text = strings.TrimRight(text, "\n")
	parts := strings.Split(text, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n")
}
