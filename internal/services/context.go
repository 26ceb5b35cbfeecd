package services

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	stepKey    contextKey = "step"
	processKey contextKey = "process"
)

// WithRunID annotates context with the orchestrator run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the qualified step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stepKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithProcess annotates context with the process name.
func WithProcess(ctx context.Context, process string) context.Context {
	if process == "" {
		return ctx
	}
	return context.WithValue(ctx, processKey, process)
}

// ProcessFromContext returns the process name if present.
func ProcessFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(processKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
