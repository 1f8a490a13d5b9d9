// Package governor bounds the retries a single queue entry may spend against
// the catalog.
//
// A lookup sequence is an explicit state machine. Budget.Observe folds each
// catalog outcome into the next Step (done, back off, retry now) and the
// Governor loop executes those steps: it draws a permit from the shared
// limiter before every call, sleeps on the injected Clock between attempts,
// and stops with RetriesExhausted once the attempt ceiling is reached while
// still rate limited. Waiting for a permit is not an attempt.
//
// Backoff waits only suspend the goroutine resolving that entry; other
// entries keep resolving concurrently through the same limiter.
package governor
