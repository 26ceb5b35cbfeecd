package logging

import (
	"context"
	"log/slog"

	"rigproc/internal/services"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if process, ok := services.ProcessFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProcess, process))
	}
	if step, ok := services.StepFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStep, step))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// WithStep annotates ctx with the step name and returns it alongside a logger
// carrying the same fields.
func WithStep(ctx context.Context, logger *slog.Logger, step string) (context.Context, *slog.Logger) {
	ctx = services.WithStep(ctx, step)
	return ctx, WithContext(ctx, logger)
}
