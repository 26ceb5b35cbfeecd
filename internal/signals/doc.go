// Package signals exposes the process-wide flags shared between a running
// orchestrator, the CLI, and step commands: the current process path, the stop
// request, and the run-in-progress lock.
//
// Values come from the OS environment and from an optional process.env file in
// the process directory. The OS environment wins when both define a key.
package signals
