// Package daemon runs the long-lived crate server.
//
// It owns the single-instance flock, the HTTP listener serving the api
// package's router, and shutdown ordering: stop accepting requests first,
// then let detached catalog lookups finish writing back, then release the
// lock.
package daemon
