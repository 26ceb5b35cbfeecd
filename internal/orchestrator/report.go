package orchestrator

import (
	"time"
)

// Status is a node's state within one run.
type Status string

const (
	StatusPending Status = "Pending"
	StatusRunning Status = "Running"
	StatusSuccess Status = "Success"
	StatusSkipped Status = "Skipped"
	StatusFailed  Status = "Failed"
	// StatusStopped marks a step interrupted by a stop request. It is not a failure.
	StatusStopped Status = "Stopped"
)

// StepResult is one reported step.
type StepResult struct {
	Name     string
	Status   Status
	Detail   string
	Trace    string
	Duration time.Duration
}

// Report is the outcome of one run.
type Report struct {
	RunID    string
	Process  string
	Started  time.Time
	Elapsed  time.Duration
	Results  []StepResult
	Stopped  bool
	Strict   bool
	Only     string
	// Err is the error that aborted a strict run.
	Err error
}

// Failures returns the failed steps in execution order.
func (r Report) Failures() []StepResult {
	var out []StepResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Count returns how many results have status.
func (r Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Statuses returns (name, status) pairs in execution order.
func (r Report) Statuses() [][2]string {
	out := make([][2]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = [2]string{res.Name, string(res.Status)}
	}
	return out
}

// Outcome summarises the run: success, failed, stopped, or aborted.
func (r Report) Outcome() string {
	switch {
	case r.Err != nil:
		return "aborted"
	case r.Stopped:
		return "stopped"
	case len(r.Failures()) > 0:
		return "failed"
	default:
		return "success"
	}
}
