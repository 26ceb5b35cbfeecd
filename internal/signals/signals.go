package signals

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"rigproc/internal/services"
)

const (
	EnvProcessPath = "RIGPROC_PROCESS_PATH"
	EnvStop        = "RIGPROC_STOP"
	EnvRunning     = "RIGPROC_RUNNING"
)

const (
	EnvFile  = "process.env"
	StopFile = "stop.request"
	LockFile = "run.lock"
)

// Controller reads and writes the signals of one process directory.
type Controller struct {
	dir  string
	file map[string]string
}

// Open loads process.env from dir when present.
func Open(dir string) (*Controller, error) {
	c := &Controller{dir: dir, file: map[string]string{}}
	path := filepath.Join(dir, EnvFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "read "+EnvFile, path, err)
	}
	c.file = values
	return c, nil
}

// Dir returns the process directory.
func (c *Controller) Dir() string {
	return c.dir
}

// Lookup returns key from the OS environment, falling back to process.env.
func (c *Controller) Lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := c.file[key]
	return v, ok
}

// Env returns the merged process.env values with OS overrides applied, for
// passing to step commands.
func (c *Controller) Env() map[string]string {
	out := make(map[string]string, len(c.file))
	for k := range c.file {
		v, _ := c.Lookup(k)
		out[k] = v
	}
	return out
}

// StopRequested reports whether a stop file exists or the stop flag is set.
func (c *Controller) StopRequested() bool {
	if _, err := os.Stat(filepath.Join(c.dir, StopFile)); err == nil {
		return true
	}
	v, _ := c.Lookup(EnvStop)
	return Truthy(v)
}

// RequestStop writes the stop marker so a running orchestrator aborts at the
// next step boundary.
func (c *Controller) RequestStop() error {
	return os.WriteFile(filepath.Join(c.dir, StopFile), []byte("stop\n"), 0o644)
}

// ClearStop removes the stop marker.
func (c *Controller) ClearStop() error {
	err := os.Remove(filepath.Join(c.dir, StopFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Running reports whether another holder currently owns the run lock.
func (c *Controller) Running() (bool, error) {
	lock := flock.New(filepath.Join(c.dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe run lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

// RunLock is a held run-in-progress lock.
type RunLock struct {
	lock    *flock.Flock
	once    sync.Once
	restore func()
}

// Acquire takes the run lock and marks the run in the environment. It fails
// with services.ErrRunInProgress when another run holds the lock.
func (c *Controller) Acquire() (*RunLock, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(c.dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrRunInProgress, "", "acquire run lock", c.dir, nil)
	}
	restore := setEnv(map[string]string{
		EnvProcessPath: c.dir,
		EnvRunning:     "1",
	})
	return &RunLock{lock: lock, restore: restore}, nil
}

// Release unlocks and restores the environment. Safe to call more than once.
func (l *RunLock) Release() error {
	var err error
	l.once.Do(func() {
		l.restore()
		err = l.lock.Unlock()
	})
	return err
}

// Truthy interprets common flag spellings.
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func setEnv(values map[string]string) func() {
	type previous struct {
		value string
		set   bool
	}
	saved := make(map[string]previous, len(values))
	for k, v := range values {
		old, ok := os.LookupEnv(k)
		saved[k] = previous{value: old, set: ok}
		_ = os.Setenv(k, v)
	}
	return func() {
		for k, p := range saved {
			if p.set {
				_ = os.Setenv(k, p.value)
			} else {
				_ = os.Unsetenv(k)
			}
		}
	}
}
