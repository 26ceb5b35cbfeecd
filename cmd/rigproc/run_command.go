package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rigproc/internal/history"
	"rigproc/internal/logging"
	"rigproc/internal/metrics"
	"rigproc/internal/orchestrator"
	"rigproc/internal/preflight"
	"rigproc/internal/report"
	"rigproc/internal/steprunner"
)

// errRunFailed marks a run that completed with failing steps.
var errRunFailed = errors.New("run finished with failures")

type runFlags struct {
	only        string
	strict      bool
	sync        bool
	jsonOutput  bool
	metricsFile string
	journal     string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the enabled steps of a process in manifest order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, ctx, flags)
		},
	}

	cmd.Flags().StringVar(&flags.only, "only", "", "Run a single step and its subtree")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Abort at the first failing step")
	cmd.Flags().BoolVar(&flags.sync, "sync", false, "Sync the manifest with the steps directory before running")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output the run report as JSON")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this .prom file")
	cmd.Flags().StringVar(&flags.journal, "journal", "", "Append transaction boundaries to this JSONL file")
	return cmd
}

func executeRun(cmd *cobra.Command, ctx *commandContext, flags runFlags) error {
	cfg := ctx.configValue()
	logger := ctx.loggerValue()

	proc, err := ctx.openProcess()
	if err != nil {
		return err
	}
	if check := preflight.CheckDirectoryAccess("Process directory", proc.path); !check.Passed {
		return fmt.Errorf("process %s: %s", proc.name, check.Detail)
	}

	runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.sync {
		if _, err := proc.manifest.Sync(runCtx, proc.repo); err != nil {
			return fmt.Errorf("sync manifest: %w", err)
		}
	}

	opts, err := ctx.openOptions(proc)
	if err != nil {
		return err
	}
	proc.repo.SetCommandEnv(proc.signals.Env())

	runnerOpts := []steprunner.Option{steprunner.WithLogger(logger)}
	if path := strings.TrimSpace(flags.journal); path != "" {
		journal, err := steprunner.OpenJournalFile(path, "")
		if err != nil {
			return err
		}
		defer func() {
			if err := journal.Release(); err != nil {
				logger.Warn("failed to close journal", logging.Error(err))
			}
		}()
		runnerOpts = append(runnerOpts, steprunner.WithTransactor(journal))
	}
	runner := steprunner.New(proc.repo, runnerOpts...)

	metricsPath := strings.TrimSpace(flags.metricsFile)
	if metricsPath == "" {
		metricsPath = strings.TrimSpace(cfg.Metrics.TextfilePath)
	}
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var promRecorder *metrics.PrometheusRecorder
	if metricsPath != "" {
		promRecorder = metrics.NewPrometheusRecorder(nil)
		recorder = promRecorder
	}

	var sinks []orchestrator.ReportSink
	if cfg.Run.RecordHistory {
		store, err := history.Open(runCtx, cfg.Paths.HistoryDB)
		if err != nil {
			logger.Warn("run history unavailable",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_unavailable"),
				logging.String(logging.FieldImpact, "this run will not be recorded"),
			)
		} else {
			defer store.Close()
			sinks = append(sinks, store)
		}
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Process:     proc.name,
		ProcessPath: proc.path,
		Manifest:    proc.manifest,
		Config:      opts,
		Runner:      runner,
		Signals:     proc.signals,
		Metrics:     recorder,
		Sinks:       sinks,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	result, runErr := orch.Run(runCtx, orchestrator.RunOptions{
		Only:   strings.TrimSpace(flags.only),
		Strict: flags.strict || cfg.Run.Strict,
	})
	if result.RunID == "" {
		return runErr
	}

	if promRecorder != nil {
		if err := promRecorder.WriteTextfile(metricsPath); err != nil {
			logger.Warn("failed to write metrics", logging.Error(err), logging.String("path", metricsPath))
		}
	}

	if flags.jsonOutput {
		if err := writeJSON(cmd, newRunReportJSON(result)); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, report.Render(result, report.Options{Color: report.ColorEnabled(out)}))
	}

	switch {
	case runErr != nil:
		return runErr
	case result.Stopped:
		return context.Canceled
	case len(result.Failures()) > 0:
		return fmt.Errorf("%w: %d step(s) failed", errRunFailed, len(result.Failures()))
	}
	return nil
}

type stepResultJSON struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type runReportJSON struct {
	RunID     string           `json:"run_id"`
	Process   string           `json:"process"`
	Started   time.Time        `json:"started"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Outcome   string           `json:"outcome"`
	Strict    bool             `json:"strict"`
	Stopped   bool             `json:"stopped"`
	Only      string           `json:"only,omitempty"`
	Error     string           `json:"error,omitempty"`
	Steps     []stepResultJSON `json:"steps"`
	Failures  []string         `json:"failures"`
}

func newRunReportJSON(r orchestrator.Report) runReportJSON {
	out := runReportJSON{
		RunID:     r.RunID,
		Process:   r.Process,
		Started:   r.Started,
		ElapsedMS: r.Elapsed.Milliseconds(),
		Outcome:   r.Outcome(),
		Strict:    r.Strict,
		Stopped:   r.Stopped,
		Only:      r.Only,
		Steps:     make([]stepResultJSON, 0, len(r.Results)),
		Failures:  []string{},
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	for _, res := range r.Results {
		out.Steps = append(out.Steps, stepResultJSON{
			Name:       res.Name,
			Status:     string(res.Status),
			Detail:     res.Detail,
			DurationMS: res.Duration.Milliseconds(),
		})
	}
	for _, f := range r.Failures() {
		out.Failures = append(out.Failures, f.Name)
	}
	return out
}
