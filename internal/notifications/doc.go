// Package notifications delivers post workflow events via ntfy.
//
// NewService publishes to the topic configured under [notifications] and
// degrades to a no-op when no topic is set. Each event can be muted through
// its config toggle; muted events return nil without any network call.
package notifications
