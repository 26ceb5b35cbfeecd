// Package options stores a process's group-qualified, typed configuration
// values and resolves lookups for running steps.
//
// Keys are "group.leaf" (or a bare "leaf"). Lookup is two-phase: LookupExact
// matches the qualified key, and LookupSuffix falls back to the first stored
// key, in insertion order, whose final segment equals the requested leaf. The
// fallback is deliberately forgiving and is not deterministic across groups
// that share a leaf name; callers get a warning whenever it is used.
package options
