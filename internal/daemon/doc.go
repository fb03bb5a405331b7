// Package daemon coordinates the long-running Postflow process.
//
// It wires configuration, the post store, the publish worker, and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. The API exposes an admin surface guarded by the static bearer
// token from paths.api_token and a client approval surface guarded by JWTs
// minted through internal/auth.
//
// Keep orchestration logic here: post semantics live in internal/api and
// internal/posts, publishing lives in internal/publisher, while the daemon
// focuses on startup, shutdown, and request routing.
package daemon
