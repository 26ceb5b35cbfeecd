package orchestrator

import (
	"context"

	"rigproc/internal/runtimebus"
)

// StopSignal reports a process-wide stop request.
type StopSignal interface {
	StopRequested() bool
}

// RunContext owns the mutable state of a single run.
type RunContext struct {
	ID      string
	ctx     context.Context
	bus     *runtimebus.Bus
	stop    StopSignal
	skip    bool
	stopped bool
	states  map[string]Status
	results []StepResult
}

func newRunContext(ctx context.Context, id string, bus *runtimebus.Bus, stop StopSignal) *RunContext {
	rc := &RunContext{ID: id, ctx: ctx, bus: bus, stop: stop}
	rc.Reset()
	return rc
}

// Reset clears the skip request, the runtime bus, and recorded results.
func (rc *RunContext) Reset() {
	rc.skip = false
	rc.stopped = false
	rc.states = make(map[string]Status)
	rc.results = nil
	if rc.bus != nil {
		rc.bus.Reset()
	}
}

// RequestSkip marks the running step's children to be skipped.
func (rc *RunContext) RequestSkip() {
	rc.skip = true
}

// SkipRequested reports whether a skip request is pending.
func (rc *RunContext) SkipRequested() bool {
	return rc.skip
}

// consumeSkip returns and clears the pending skip request.
func (rc *RunContext) consumeSkip() bool {
	requested := rc.skip
	rc.skip = false
	return requested
}

// StopRequested polls the context and the stop signal. Once observed, the
// stop sticks for the rest of the run.
func (rc *RunContext) StopRequested() bool {
	if rc.stopped {
		return true
	}
	if rc.ctx != nil && rc.ctx.Err() != nil {
		rc.stopped = true
	} else if rc.stop != nil && rc.stop.StopRequested() {
		rc.stopped = true
	}
	return rc.stopped
}

// State returns the status recorded for name in this run.
func (rc *RunContext) State(name string) Status {
	if status, ok := rc.states[name]; ok {
		return status
	}
	return StatusPending
}

func (rc *RunContext) record(result StepResult) {
	rc.states[result.Name] = result.Status
	rc.results = append(rc.results, result)
}

func (rc *RunContext) setState(name string, status Status) {
	rc.states[name] = status
}
