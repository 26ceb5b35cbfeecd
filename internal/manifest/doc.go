// Package manifest persists the ordered list of a process's steps together with
// their enabled flags.
//
// The manifest is a flat, newline-delimited file where nesting is encoded by
// slash-delimited names ("build/skeleton/ik"). Store reads and writes that file,
// answers per-name queries, and reconciles it against the step units present on
// disk. BuildTree turns the flat list into an explicit tree once per run so the
// orchestrator never rescans prefixes while walking.
package manifest
