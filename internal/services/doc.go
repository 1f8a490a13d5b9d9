// Package services defines shared utilities consumed by the enrichment engine
// and its HTTP and CLI boundaries.
//
// Key responsibilities:
//   - Context helpers that stamp queue entry IDs, operation names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so boundaries can map
//     failures (validation, not found, catalog trouble) without string
//     matching.
//
// Use these helpers when wiring new engine code so operational behaviour (error
// handling, observability) stays uniform across packages.
package services
