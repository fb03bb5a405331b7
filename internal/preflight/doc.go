// Package preflight provides readiness checks for the paths and external
// services postflow depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failed check with a
//     hint; failures do not stop the daemon because each publish attempt
//     reports its own errors.
//   - The CLI "postflow status" command renders the same results.
//
// Each check is gated by its config toggle -- disabled features are skipped.
// Checks run concurrently and results keep a stable order.
package preflight
