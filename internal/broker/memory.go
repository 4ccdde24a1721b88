package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tksfz/trampoline/internal/task"
)

// Memory is an in-process Consumer/Producer backed by per-topic
// queues, used by tests in place of a real broker connection. It
// keeps FIFO order per topic without any network transport, the same
// way the agent framework's own broker service keeps per-topic queues
// in memory. A message leaves its queue when it is pulled; Ack is
// accepted but has no effect, and nothing is redelivered.
type Memory struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queues  map[string][]*Envelope
	closed  bool
}

// NewMemory builds an empty in-memory broker subscribed implicitly to
// every topic ever published to.
func NewMemory() *Memory {
	m := &Memory{queues: make(map[string][]*Envelope)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish enqueues msg on topic, assigning it a fresh broker id.
func (m *Memory) Publish(ctx context.Context, topic string, msg task.Message) error {
	payload, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("memory broker: encode message: %w", err)
	}

	m.mu.Lock()
	m.queues[topic] = append(m.queues[topic], &Envelope{
		ID:      uuid.New().String(),
		Topic:   topic,
		Payload: payload,
	})
	m.cond.Broadcast()
	m.mu.Unlock()
	return nil
}

// Pull returns the oldest undelivered message of some non-empty topic,
// blocking until one arrives, ctx is cancelled, or Close is called.
// Which topic is served first is not defined (map iteration order);
// delivery order across topics is unspecified beyond FIFO-per-topic,
// matching the broker contract's "no cross-topic ordering promise."
func (m *Memory) Pull(ctx context.Context) (*Envelope, error) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
		close(done)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.closed {
			return nil, fmt.Errorf("memory broker: closed")
		}

		for topic, envs := range m.queues {
			if len(envs) > 0 {
				env := envs[0]
				m.queues[topic] = envs[1:]
				return env, nil
			}
		}

		m.cond.Wait()
	}
}

// Ack is a no-op: the memory broker removes a message from its queue
// at delivery time, since there is no separate process to redeliver
// to.
func (m *Memory) Ack(ctx context.Context, env *Envelope) error {
	return nil
}

// Close unblocks any pending Pull calls.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}
