// Package api is the HTTP JSON boundary of crate.
//
// It translates queue entries and ranked items into transport DTOs, mounts
// the chi router served by the daemon, and provides the client the CLI uses
// to talk to a running server.
//
// # Key Types
//
// QueueEntry: persisted entry with state, attempt bookkeeping, and match.
//
// QueueItem: one ranked playable position returned by the up-next endpoint.
//
// NextResponse: a ranked page plus queue accounting. CatalogError is set when
// the page was built while the catalog was failing.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Timestamps use RFC3339 with milliseconds.
// Error text shown to users passes through UserMessage so internal retry
// bookkeeping never surfaces as a raw error.
package api
