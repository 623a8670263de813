// Package services defines shared utilities consumed by the ingestion
// pipeline, the print monitor, and the HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp print job IDs, filenames, and correlation
//     identifiers for logging.
//   - Error markers for the failure taxonomy (retrieval, parse, duplicate,
//     persistence, timeout) plus the Wrap helper that tags failures so callers
//     can classify them with errors.Is.
//
// Use these helpers when wiring new components so error classification and
// log fields stay uniform across the daemon and the CLI.
package services
