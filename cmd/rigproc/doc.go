// Package main hosts the rigproc CLI entrypoint and command graph.
//
// The Cobra-based command tree runs a process's manifest, edits the manifest
// and option stores, authors step units, reads run history, and scaffolds
// configuration. It centralizes configuration resolution, process lookup, and
// logging setup so subcommands stay declarative.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is surfaced here through commands or flags.
package main
