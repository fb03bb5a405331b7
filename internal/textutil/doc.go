// Package textutil normalizes the free-form text attached to posts.
//
// Captions are Unicode-normalized (NFC) and stripped of control characters.
// Hashtags are parsed from loose user input, case-folded for de-duplication
// and rendered in a canonical "#tag #tag" form. Caption fingerprints give a
// cheap cosine similarity used to flag near-duplicate posts for a client.
package textutil
