// Package digging is the queue service: it decides which entries are due for
// a catalog lookup, runs those lookups concurrently through the retry
// governor, folds the results into stored state, and returns the ranked
// "up next" page or the full export.
//
// Lookups run on a context detached from the caller. A caller that gives up
// early still gets its backoff bookkeeping persisted; it only loses the
// results it did not wait for. Entries still resolving when a page is built
// are reported as unresolved for now.
package digging
