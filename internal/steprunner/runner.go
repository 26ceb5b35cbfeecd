package steprunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"rigproc/internal/logging"
	"rigproc/internal/services"
)

// StatusSuccess is the status text of a step that completed.
const StatusSuccess = "Success"

// Result is the outcome of one step execution.
type Result struct {
	Name  string
	Value any
	// Status is StatusSuccess or the captured failure description.
	Status   string
	Err      error
	Trace    string
	Duration time.Duration
}

// Failed reports whether the step failed. A stop request is not a failure.
func (r Result) Failed() bool {
	return services.IsFailure(r.Err)
}

// Stopped reports whether the step ended because a stop was requested.
func (r Result) Stopped() bool {
	return errors.Is(r.Err, services.ErrStopRequested)
}

// Option configures a Runner.
type Option func(*Runner)

// WithTransactor sets the transaction collaborator. The default is NopTransactor.
func WithTransactor(t Transactor) Option {
	return func(r *Runner) {
		if t != nil {
			r.transactor = t
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner loads and executes step units from a CodeRepository.
type Runner struct {
	repo       CodeRepository
	transactor Transactor
	logger     *slog.Logger
}

// New returns a runner over repo.
func New(repo CodeRepository, opts ...Option) *Runner {
	r := &Runner{repo: repo, transactor: NopTransactor{}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Repository returns the runner's code repository.
func (r *Runner) Repository() CodeRepository {
	return r.repo
}

// Run executes the unit for name with facade. Failures are captured in the
// Result. When hardError is set a failure is also returned as an error after
// it has been recorded.
func (r *Runner) Run(ctx context.Context, name string, facade *Context, hardError bool) (Result, error) {
	if r.repo == nil {
		return Result{}, fmt.Errorf("step runner has no code repository")
	}
	if facade == nil {
		facade = NewContext(FacadeOptions{})
	}
	stepCtx, stepLogger := logging.WithStep(ctx, r.logger, name)
	step := facade.ForStep(name, stepLogger)

	started := time.Now()
	stepLogger.Info("step started",
		logging.String(logging.FieldEventType, "step_start"),
		logging.Bool("hard_error", hardError),
	)

	result := Result{Name: name}
	if err := r.transactor.Open(stepCtx, name); err != nil {
		result.Err = services.Wrap(services.ErrRuntime, name, "open transaction", "", err)
		result.Trace = err.Error()
	} else {
		result.Value, result.Trace, result.Err = r.execute(stepCtx, name, step)
		if err := r.transactor.Close(stepCtx, name, result.Err != nil); err != nil {
			stepLogger.Warn("failed to close transaction",
				logging.Error(err),
				logging.String(logging.FieldEventType, "transaction_close_failed"),
			)
		}
	}
	result.Duration = time.Since(started)

	switch {
	case result.Err == nil:
		result.Status = StatusSuccess
		stepLogger.Info("step completed",
			logging.String(logging.FieldEventType, "step_complete"),
			logging.Duration("step_duration", result.Duration),
		)
		return result, nil
	case result.Stopped():
		result.Status = "Stopped"
		stepLogger.Info("step interrupted by stop request",
			logging.String(logging.FieldEventType, "step_stopped"),
			logging.Duration("step_duration", result.Duration),
		)
		return result, nil
	}

	details := services.Details(result.Err)
	result.Status = strings.TrimSpace(details.Message)
	if result.Status == "" {
		result.Status = "step failed"
	}
	stepLogger.Error("step failed",
		logging.String(logging.FieldEventType, "step_failure"),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String("error_message", result.Status),
		logging.Duration("step_duration", result.Duration),
		logging.Error(result.Err),
	)
	if hardError {
		return result, result.Err
	}
	return result, nil
}

func (r *Runner) execute(ctx context.Context, name string, step *Context) (value any, trace string, err error) {
	handle, err := r.repo.Find(name)
	if err != nil {
		wrapped := services.Wrap(services.ErrLoad, name, "find", "", err)
		return nil, err.Error(), wrapped
	}
	entry, err := r.repo.Load(handle)
	if err != nil {
		wrapped := services.Wrap(services.ErrLoad, name, "load", "", err)
		return nil, err.Error(), wrapped
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			value = nil
			err = services.Wrap(services.ErrRuntime, name, "execute", fmt.Sprintf("panic: %v", recovered), nil)
			trace = string(debug.Stack())
		}
	}()

	value, runErr := entry(ctx, step)
	if runErr == nil {
		return value, "", nil
	}
	if errors.Is(runErr, services.ErrStopRequested) || errors.Is(runErr, context.Canceled) {
		return nil, runErr.Error(), services.Wrap(services.ErrStopRequested, name, "execute", "", runErr)
	}
	trace = runErr.Error()
	var cmdErr *CommandError
	if errors.As(runErr, &cmdErr) && cmdErr.Stderr != "" {
		trace = trace + "\n" + cmdErr.Stderr
	}
	return nil, trace, services.Wrap(services.ErrRuntime, name, "execute", "", runErr)
}
