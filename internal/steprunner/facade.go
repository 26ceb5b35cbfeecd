package steprunner

import (
	"log/slog"

	"rigproc/internal/logging"
	"rigproc/internal/options"
)

// ConfigStore resolves and updates process options.
type ConfigStore interface {
	Get(name, group string) (any, options.Resolution)
	Has(name, group string) bool
	Set(name string, value any, group string) error
	Add(name string, value any, group string, tag options.TypeTag) (bool, error)
}

// RuntimeStore shares values between steps of one run.
type RuntimeStore interface {
	Set(name string, value any)
	Get(name string) (any, bool)
	Keys() []string
}

// StepStore answers manifest questions and toggles steps.
type StepStore interface {
	Contains(name string) bool
	State(name string) (enabled bool, found bool)
	Children(name string) []string
	SetState(name string, enabled bool) error
}

// Signals connects a step to the run that is executing it.
type Signals interface {
	RequestSkip()
	StopRequested() bool
}

// Context is the capability set handed to a step's entry routine.
type Context struct {
	Step        string
	Process     string
	ProcessPath string
	Config      ConfigStore
	Runtime     RuntimeStore
	Steps       StepStore
	Logger      *slog.Logger
	signals     Signals
}

// FacadeOptions assembles a Context.
type FacadeOptions struct {
	Process     string
	ProcessPath string
	Config      ConfigStore
	Runtime     RuntimeStore
	Steps       StepStore
	Signals     Signals
	Logger      *slog.Logger
}

// NewContext builds the facade shared by every step of one run.
func NewContext(opts FacadeOptions) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Context{
		Process:     opts.Process,
		ProcessPath: opts.ProcessPath,
		Config:      opts.Config,
		Runtime:     opts.Runtime,
		Steps:       opts.Steps,
		Logger:      logger,
		signals:     opts.Signals,
	}
}

// ForStep returns a copy of c scoped to step.
func (c *Context) ForStep(step string, logger *slog.Logger) *Context {
	clone := *c
	clone.Step = step
	if logger != nil {
		clone.Logger = logger
	}
	return &clone
}

// Option resolves an option value. Lookup warnings are logged by the store.
func (c *Context) Option(name, group string) any {
	if c == nil || c.Config == nil {
		return nil
	}
	v, _ := c.Config.Get(name, group)
	return v
}

// HasOption reports whether an option resolves.
func (c *Context) HasOption(name, group string) bool {
	if c == nil || c.Config == nil {
		return false
	}
	return c.Config.Has(name, group)
}

// SetOption overwrites an option. It is written through to the options file.
func (c *Context) SetOption(name string, value any, group string) error {
	if c == nil || c.Config == nil {
		return nil
	}
	return c.Config.Set(name, value, group)
}

// AddOption stores an option unless it already exists.
func (c *Context) AddOption(name string, value any, group string) (bool, error) {
	if c == nil || c.Config == nil {
		return false, nil
	}
	return c.Config.Add(name, value, group, options.TagPlain)
}

// SetEnabled toggles a step in the manifest. Later runs see the change; the
// current run keeps the states it started with.
func (c *Context) SetEnabled(name string, enabled bool) error {
	if c == nil || c.Steps == nil {
		return nil
	}
	return c.Steps.SetState(name, enabled)
}

// Put stores a runtime value for later steps.
func (c *Context) Put(name string, value any) {
	if c == nil || c.Runtime == nil {
		return
	}
	c.Runtime.Set(name, value)
}

// Fetch reads a runtime value stored by an earlier step.
func (c *Context) Fetch(name string) (any, bool) {
	if c == nil || c.Runtime == nil {
		return nil, false
	}
	return c.Runtime.Get(name)
}

// Skip asks the orchestrator to skip this step's children for the current run.
func (c *Context) Skip() {
	if c == nil || c.signals == nil {
		return
	}
	c.signals.RequestSkip()
}

// StopRequested reports whether the run has been asked to stop. Long-running
// steps poll it between units of work.
func (c *Context) StopRequested() bool {
	if c == nil || c.signals == nil {
		return false
	}
	return c.signals.StopRequested()
}
