// Package listen provides the change-notification streams the
// reconciler subscribes to. A stream is a non-durable signal: events
// missed while disconnected are not redelivered, which is why every
// reconnect is followed by an unconditional catch-up cycle upstream.
package listen

import "context"

// Event is one change notification.
type Event struct {
	Channel string
	Payload string
}

// Stream is a live subscription to change notifications. A Stream owns
// its own dedicated connection, distinct from the pooled query handle: a
// connection in active-listen mode is not reusable for ordinary queries.
//
// Connect, Wait, and Ping return errors on connection loss; the caller
// (internal/reconcile) handles reconnection with backoff.
type Stream interface {
	// Connect establishes (or re-establishes) the subscription.
	Connect(ctx context.Context) error

	// Wait blocks until the next event arrives, the context is done, or
	// the connection fails.
	Wait(ctx context.Context) (Event, error)

	// Ping probes the subscription connection. Used as a keepalive to
	// catch silently dead connections that never reported a close.
	Ping(ctx context.Context) error

	// Close tears the subscription down.
	Close(ctx context.Context) error
}
