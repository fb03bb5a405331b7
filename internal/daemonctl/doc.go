// Package daemonctl starts, stops and probes a background postflow daemon
// from the CLI.
//
// The daemon is reached over its HTTP status endpoint; when that is
// unavailable the pid file in data_dir identifies the process. Stopping sends
// SIGTERM so the daemon finishes the post it is publishing, then escalates to
// SIGKILL after a grace period.
package daemonctl
