// Package events streams post lifecycle events to Kafka.
//
// Events are best effort: a failed emit is logged by the caller and never
// changes the outcome of the operation that produced it. When events are
// disabled the Noop sink is used.
package events
