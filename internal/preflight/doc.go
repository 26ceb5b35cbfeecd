// Package preflight provides readiness checks for a process directory.
//
// The CLI "rigproc doctor" command prints every result of RunAll. "rigproc
// run" only calls CheckDirectoryAccess; broken units surface as step failures
// during the run instead of blocking it.
//
// Checks never mutate the process directory.
package preflight
