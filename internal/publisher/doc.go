// Package publisher runs the periodic publish loop.
//
// A Worker snapshots approved posts each cycle and publishes them one at a
// time through the platform client, committing `approved -> published` on
// success and leaving the post approved on failure so the next cycle retries
// it. Each platform call is recorded as a publish attempt.
//
// Cancellation is observed before each cycle, between posts, and while
// sleeping. A publish that has started runs to completion on a context
// detached from the worker's, bounded by the platform request timeout, so
// shutdown never abandons a post between the platform call and its commit.
package publisher
