// Package messaging defines the queue used to fan request and decision
// events out to listeners.
package messaging

import (
	"context"
)

// Queue carries events of type T from the engine to listeners. Publish
// copies the payload; delivery is at least once.
type Queue[T any] interface {
	Publish(ctx context.Context, t *T) error
	// Consume blocks until a message is available or ctx is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is one delivery. A listener acks it after handling, or nacks it
// to have it redelivered until the queue's retry budget is spent.
type Message[T any] interface {
	T() *T
	Ack() error
	Nack(err error) error
}
