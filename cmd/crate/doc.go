// Command crate runs the digging queue server and talks to it.
//
// `crate serve` starts the HTTP API in the foreground. The queue subcommands
// (add, list, next, export, remove, retry, stats) are thin clients of that
// API; `crate config` creates and prints configuration.
package main
