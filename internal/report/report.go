// Package report renders run reports and run history for the terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rigproc/internal/history"
	"rigproc/internal/orchestrator"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.English)

// ColorEnabled reports whether w is a terminal that should receive ANSI colour.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Options controls rendering.
type Options struct {
	Color bool
}

// Render writes the end-of-run summary: one row per step, the failures, and
// the total elapsed time.
func Render(r orchestrator.Report, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n", shortID(r.RunID), r.Process)

	rows := make([][]string, 0, len(r.Results))
	for i, res := range r.Results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			indentName(res.Name),
			colorStatus(string(res.Status), opts.Color),
			formatDuration(res.Duration),
			res.Detail,
		})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"#", "Step", "Status", "Duration", "Detail"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		))
		b.WriteString("\n")
	} else {
		b.WriteString("No steps ran.\n")
	}

	if failures := r.Failures(); len(failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Name, firstLine(f.Detail))
		}
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "\nAborted: %v\n", r.Err)
	}

	outcome := titleCaser.String(r.Outcome())
	fmt.Fprintf(&b, "\n%s in %s (%d ok, %d skipped, %d failed)\n",
		colorStatus(outcome, opts.Color),
		formatDuration(r.Elapsed),
		r.Count(orchestrator.StatusSuccess),
		r.Count(orchestrator.StatusSkipped),
		r.Count(orchestrator.StatusFailed),
	)
	return b.String()
}

// RenderRuns renders a history listing.
func RenderRuns(runs []history.Run, opts Options) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Process,
			run.Started.Local().Format("2006-01-02 15:04:05"),
			colorStatus(titleCaser.String(run.Outcome), opts.Color),
			fmt.Sprintf("%d", run.Failures),
			formatDuration(run.Elapsed),
		})
	}
	return renderTable(
		[]string{"Run", "Process", "Started", "Outcome", "Failures", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	) + "\n"
}

// RenderSteps renders the persisted step results of one run.
func RenderSteps(steps []history.StepRecord, opts Options) string {
	if len(steps) == 0 {
		return "No steps recorded.\n"
	}
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, []string{
			fmt.Sprintf("%d", step.Seq+1),
			indentName(step.Name),
			colorStatus(step.Status, opts.Color),
			formatDuration(step.Duration),
			firstLine(step.Detail),
		})
	}
	return renderTable(
		[]string{"#", "Step", "Status", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	) + "\n"
}

// Table renders a plain table for CLI listings.
func Table(headers []string, rows [][]string) string {
	return renderTable(headers, rows, nil)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func colorStatus(status string, enabled bool) string {
	if !enabled {
		return status
	}
	var color string
	switch strings.ToLower(status) {
	case "success":
		color = ansiGreen
	case "failed", "aborted":
		color = ansiRed
	case "skipped", "stopped":
		color = ansiYellow
	case "running", "pending":
		color = ansiBlue
	}
	if color == "" {
		return status
	}
	return color + status + ansiReset
}

// indentName shows nesting by indenting the leaf under its ancestors.
func indentName(name string) string {
	depth := strings.Count(name, "/")
	if depth == 0 {
		return name
	}
	leaf := name[strings.LastIndex(name, "/")+1:]
	return strings.Repeat("  ", depth) + leaf
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
