// Package config loads, normalizes, and validates rigproc configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the RIGPROC_PROCESS_ROOT
// environment fallback. The Config type centralizes every knob the CLI and
// the orchestrator need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
