// Package report builds per-client or global activity reports.
//
// A report lists post counts per status, the most recent posts, publish
// failures inside a time window and, when a platform client is available,
// engagement counters for recently published posts. Reports render as
// go-pretty tables for the terminal or marshal directly to JSON.
package report
