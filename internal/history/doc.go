// Package history persists finished runs and their step results in SQLite.
//
// Store implements orchestrator.ReportSink so the CLI can attach it to every
// run. The database is a local log rather than an archive: schema changes bump
// schemaVersion and users delete the file to adopt them.
package history
