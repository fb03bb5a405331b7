// Package services defines shared utilities consumed by the publisher, the
// platform client and the HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp post IDs, client IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers that classify
//     external failures consistently in logs and notifications.
package services
