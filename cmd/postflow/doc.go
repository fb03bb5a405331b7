// Package main hosts the Postflow CLI entrypoint and command graph.
//
// Commands work directly against the shared SQLite post store, so they are
// usable whether or not the daemon is running; SQLite serializes writes
// across processes. The status command additionally asks a running daemon
// for its worker state over the HTTP API; start, stop and restart manage a
// background daemon through internal/daemonctl.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
