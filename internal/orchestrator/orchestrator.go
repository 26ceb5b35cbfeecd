package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rigproc/internal/logging"
	"rigproc/internal/manifest"
	"rigproc/internal/metrics"
	"rigproc/internal/runtimebus"
	"rigproc/internal/services"
	"rigproc/internal/signals"
	"rigproc/internal/steprunner"
)

// Manifest is the step store used during a run.
type Manifest interface {
	Entries() ([]manifest.Entry, error)
	steprunner.StepStore
}

// ReportSink receives every finished report.
type ReportSink interface {
	Record(ctx context.Context, report Report) error
}

// Options wires an Orchestrator.
type Options struct {
	Process     string
	ProcessPath string
	Manifest    Manifest
	Config      steprunner.ConfigStore
	Runner      *steprunner.Runner
	// Signals provides the run lock and the stop request. Optional.
	Signals *signals.Controller
	Metrics metrics.Recorder
	Sinks   []ReportSink
	Logger  *slog.Logger
}

// RunOptions selects what a run executes.
type RunOptions struct {
	// Only runs a single step and its subtree, regardless of the step's own flag.
	Only string
	// Strict aborts the run at the first failure and returns it as an error.
	Strict bool
}

// Orchestrator executes the manifest of one process.
type Orchestrator struct {
	process     string
	processPath string
	manifest    Manifest
	config      steprunner.ConfigStore
	runner      *steprunner.Runner
	signals     *signals.Controller
	metrics     metrics.Recorder
	sinks       []ReportSink
	bus         *runtimebus.Bus
	logger      *slog.Logger
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Manifest == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "create orchestrator", "manifest is required", nil)
	}
	if opts.Runner == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "create orchestrator", "step runner is required", nil)
	}
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Orchestrator{
		process:     opts.Process,
		processPath: opts.ProcessPath,
		manifest:    opts.Manifest,
		config:      opts.Config,
		runner:      opts.Runner,
		signals:     opts.Signals,
		metrics:     recorder,
		sinks:       opts.Sinks,
		bus:         runtimebus.New(),
		logger:      logging.NewComponentLogger(opts.Logger, "orchestrator"),
	}, nil
}

// Runtime returns the bus shared by the steps of the current or last run.
func (o *Orchestrator) Runtime() *runtimebus.Bus {
	return o.bus
}

// Run executes the manifest once. Step failures are recorded in the report;
// the returned error is set only when the run could not start or when a
// strict run aborted.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (Report, error) {
	if o.signals != nil {
		lock, err := o.signals.Acquire()
		if err != nil {
			return Report{}, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				o.logger.Warn("failed to release run lock", logging.Error(err))
			}
		}()
		if err := o.signals.ClearStop(); err != nil {
			o.logger.Warn("failed to clear stale stop request", logging.Error(err))
		}
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithProcess(ctx, o.process)
	logger := logging.WithContext(ctx, o.logger)

	entries, err := o.manifest.Entries()
	if err != nil {
		return Report{}, services.Wrap(services.ErrConfiguration, "", "read manifest", "", err)
	}
	tree := manifest.BuildTree(entries)
	for _, orphan := range tree.Orphans {
		logging.WarnWithContext(logger, "manifest entry has no parent; it will not run", "manifest_orphan",
			logging.String(logging.FieldStep, orphan.Name),
			logging.String(logging.FieldErrorHint, "add the parent step or rename the entry"),
		)
	}

	var roots []*manifest.Node
	if opts.Only != "" {
		node, ok := tree.Lookup(opts.Only)
		if !ok {
			return Report{}, services.Wrap(services.ErrNotFound, opts.Only, "run", "step not in manifest", nil)
		}
		roots = []*manifest.Node{node}
	}

	var stop StopSignal
	if o.signals != nil {
		stop = o.signals
	}
	rc := newRunContext(ctx, runID, o.bus, stop)
	facade := steprunner.NewContext(steprunner.FacadeOptions{
		Process:     o.process,
		ProcessPath: o.processPath,
		Config:      o.config,
		Runtime:     o.bus,
		Steps:       o.manifest,
		Signals:     rc,
		Logger:      logger,
	})

	report := Report{RunID: runID, Process: o.process, Started: time.Now(), Strict: opts.Strict, Only: opts.Only}
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("manifest_entries", tree.Len()),
		logging.Bool("strict", opts.Strict),
		logging.String("only", opts.Only),
	)

	w := &walker{o: o, rc: rc, facade: facade, strict: opts.Strict}
	var walkErr error
	if roots != nil {
		walkErr = w.visit(ctx, roots[0], true)
	} else {
		walkErr = w.walk(ctx, tree.Roots)
	}

	report.Results = rc.results
	report.Elapsed = time.Since(report.Started)
	switch {
	case walkErr == nil:
	case errors.Is(walkErr, services.ErrStopRequested):
		report.Stopped = true
	default:
		report.Err = walkErr
	}

	o.finish(ctx, logger, report)
	return report, report.Err
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, report Report) {
	o.metrics.ObserveRunDuration(report.Elapsed)
	o.metrics.IncRunOutcome(report.Outcome())

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("outcome", report.Outcome()),
		logging.Int("succeeded", report.Count(StatusSuccess)),
		logging.Int("skipped", report.Count(StatusSkipped)),
		logging.Int("failed", report.Count(StatusFailed)),
		logging.Duration("run_duration", report.Elapsed),
	}
	if report.Stopped {
		logger.Info("run stopped", logging.Args(attrs...)...)
	} else if len(report.Failures()) > 0 || report.Err != nil {
		logger.Warn("run completed with failures", logging.Args(attrs...)...)
	} else {
		logger.Info("run completed", logging.Args(attrs...)...)
	}

	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range o.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Record(sinkCtx, report); err != nil {
			logging.WarnWithContext(logger, "failed to record run report", "report_sink_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history incomplete"),
			)
		}
	}
}

type walker struct {
	o      *Orchestrator
	rc     *RunContext
	facade *steprunner.Context
	strict bool
}

func (w *walker) walk(ctx context.Context, nodes []*manifest.Node) error {
	for _, node := range nodes {
		if err := w.visit(ctx, node, false); err != nil {
			return err
		}
	}
	return nil
}

// visit resolves one node and, when it succeeded, its subtree. force runs the
// node even when its own flag is off.
func (w *walker) visit(ctx context.Context, node *manifest.Node, force bool) error {
	if w.rc.StopRequested() {
		return services.ErrStopRequested
	}
	if !node.Enabled && !force {
		w.skip(node.Name, "disabled")
		return nil
	}

	status, err := w.execute(ctx, node.Name)
	if err != nil {
		return err
	}
	skipChildren := w.rc.consumeSkip()
	switch status {
	case StatusStopped:
		return services.ErrStopRequested
	case StatusFailed:
		return nil
	}
	if skipChildren {
		for _, child := range node.Children {
			w.skip(child.Name, "skipped by "+node.Name)
		}
		return nil
	}
	return w.walk(ctx, node.Children)
}

func (w *walker) execute(ctx context.Context, name string) (Status, error) {
	w.rc.setState(name, StatusRunning)
	result, runErr := w.o.runner.Run(ctx, name, w.facade, w.strict)

	step := StepResult{Name: name, Duration: result.Duration}
	label := metrics.ResultSuccess
	switch {
	case result.Stopped():
		step.Status = StatusStopped
		step.Detail = "stop requested"
		label = metrics.ResultStopped
	case result.Failed():
		step.Status = StatusFailed
		step.Detail = result.Status
		step.Trace = result.Trace
		label = metrics.ResultFailed
	default:
		step.Status = StatusSuccess
	}
	w.rc.record(step)
	w.o.metrics.ObserveStepDuration(name, result.Duration)
	w.o.metrics.IncStepResult(name, label)

	if runErr != nil {
		return step.Status, fmt.Errorf("strict run aborted at %s: %w", name, runErr)
	}
	return step.Status, nil
}

func (w *walker) skip(name, reason string) {
	w.rc.record(StepResult{Name: name, Status: StatusSkipped, Detail: reason})
	w.o.metrics.IncStepResult(name, metrics.ResultSkipped)
}
