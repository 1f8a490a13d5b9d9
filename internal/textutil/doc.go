// Package textutil provides the text folding and similarity helpers used to
// turn raw queue fields into catalog queries and to score catalog results.
//
// The primary use cases are:
//   - Folding artist and title text (accents, case, symbols) into a stable form
//   - Creating token-based fingerprints and comparing them with cosine similarity
//   - Compacting catalog numbers so "WARP CD-92" and "warpcd92" compare equal
//
// Folding relies on golang.org/x/text so decomposed and precomposed accents
// produce the same tokens.
package textutil
