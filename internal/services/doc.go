// Package services defines shared utilities consumed by the step runner, the
// orchestrator, and the stores.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, step names, and process names for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (load, runtime, stop requested) and configuration warnings (missing,
//     ambiguous) consistently across the engine.
//
// Use these helpers when wiring new step logic so operational behaviour (error
// handling, observability) stays uniform across a run.
package services
