package broker

import (
	"context"
	"sync"

	"github.com/tksfz/trampoline/internal/task"
)

// SerializedProducer wraps a Producer with a mutex held only for the
// duration of a single Publish call, so a Producer instance shared
// between the DispatchLoop's republish path and the IngressServer's
// submit path is never assumed to be multi-writer safe on its own.
type SerializedProducer struct {
	mu   sync.Mutex
	next Producer
}

// NewSerializedProducer wraps next.
func NewSerializedProducer(next Producer) *SerializedProducer {
	return &SerializedProducer{next: next}
}

// Publish serializes access to the wrapped Producer.
func (p *SerializedProducer) Publish(ctx context.Context, topic string, msg task.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next.Publish(ctx, topic, msg)
}
