// Package queue persists digging-queue entries in SQLite.
//
// The Store owns schema initialization, busy-retry handling, and the queries
// the engine needs: insertion, lookup, creation-ordered listing, the due-entry
// scan, and state counts. Entries carry their resolution state plus the
// retry bookkeeping (attempts, exhaustions, next attempt time) so a restart
// never loses a backoff window.
//
// Schema changes bump schemaVersion in schema.go; users clear the database to
// adopt the new schema.
package queue
