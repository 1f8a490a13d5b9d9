// Package catalog talks to the external discography catalog.
//
// The Client issues one database search per lookup and folds the HTTP
// response into a closed Outcome variant: Resolved with the best scored
// Match, Unresolved when the service answered without a hit, RateLimited
// when the service refused the call, and TransportError when no usable answer
// arrived. RetriesExhausted is never produced by the client; the retry
// governor constructs it once its attempt ceiling is reached.
//
// Scoring lives in score.go and relies on internal/textutil for folding and
// similarity so that accented or punctuated text compares equal.
package catalog
