// Package broker defines the dispatcher's view of the message bus and
// provides a concrete TCP/JSON-RPC client implementation. The broker's
// own connection management, subscription protocol, and ack protocol
// are explicitly out of scope for the dispatcher core; Consumer and
// Producer are the narrow interfaces the core depends on.
package broker

import (
	"context"

	"github.com/tksfz/trampoline/internal/task"
)

// Envelope is a message pulled off a subscription: the opaque wire
// payload plus enough broker-assigned metadata (id, source topic) to
// ack it and to log it.
type Envelope struct {
	ID      string
	Topic   string
	Payload []byte
}

// Consumer yields messages from an exclusive subscription, one
// instance per dispatcher process. Pull blocks until a message is
// available, the context is cancelled, or the subscription stream
// ends (io.EOF-equivalent, returned as an error).
type Consumer interface {
	Pull(ctx context.Context) (*Envelope, error)
	Ack(ctx context.Context, env *Envelope) error
}

// Producer publishes a TaskMessage on a topic derived from its type.
// Implementations must be safe for concurrent use, or the caller must
// serialize access — the dispatcher does the latter (see
// SerializedProducer) rather than assume the former.
type Producer interface {
	Publish(ctx context.Context, topic string, msg task.Message) error
}
