// Package orchestrator runs the steps of a process in manifest order.
//
// A run builds an explicit tree from the manifest, then walks it depth-first.
// Disabled nodes are reported Skipped and their subtrees are never evaluated.
// Enabled nodes execute through the step runner; a successful node's children
// run next unless the node asked for them to be skipped, in which case they
// are reported Skipped. A failed node's children never run and the walk
// continues with the next sibling, except in strict mode where the first
// failure ends the run.
//
// Every piece of per-run mutable state lives in a RunContext created fresh by
// Run. The stop signal is polled between entries; a stopped run keeps the
// results recorded so far.
package orchestrator
