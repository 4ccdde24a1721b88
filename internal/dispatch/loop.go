// Package dispatch implements the top-level pump: pull a message,
// acknowledge it, forward it to a handler, republish any follow-ons,
// and repeat — until the consumer stream ends or a terminal error
// occurs.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/tksfz/trampoline/internal/broker"
	"github.com/tksfz/trampoline/internal/forwarder"
	"github.com/tksfz/trampoline/internal/metrics"
	"github.com/tksfz/trampoline/internal/registry"
	"github.com/tksfz/trampoline/internal/task"
	"github.com/tksfz/trampoline/internal/tracing"
)

// Loop is the dispatch loop's runtime state: one consumer (exclusive
// subscription), one shared producer, a Forwarder, and a message
// counter.
type Loop struct {
	consumer  broker.Consumer
	producer  broker.Producer
	forwarder *forwarder.Forwarder
	counters  *metrics.Counters
}

// New builds a Loop. producer is expected to already serialize
// concurrent writers (see broker.SerializedProducer) if it is shared
// with an IngressServer in the same process.
func New(consumer broker.Consumer, producer broker.Producer, fwd *forwarder.Forwarder, counters *metrics.Counters) *Loop {
	return &Loop{consumer: consumer, producer: producer, forwarder: fwd, counters: counters}
}

// Run pumps messages until ctx is cancelled or a terminal error
// occurs: a message decode failure, a handler transport error, or a
// republish failure. All three are documented as loop-terminating in
// the error handling design; retry/backoff is future work.
func (l *Loop) Run(ctx context.Context) error {
	for {
		env, err := l.consumer.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dispatch loop: pull: %w", err)
		}
		l.counters.Consumed.Add(1)

		// Ack before handling: at-least-once on the bus input side means
		// redelivery would re-run handlers, which for most handlers here
		// is the worse failure mode than losing a message on crash
		// mid-handle. Configurable ack-after-publish policy is an open
		// question, not implemented.
		if err := l.consumer.Ack(ctx, env); err != nil {
			return fmt.Errorf("dispatch loop: ack %s: %w", env.ID, err)
		}

		msg, err := task.Decode(env.Payload)
		if err != nil {
			log.Printf("dispatch loop: fatal decode error for message %s: %v", env.ID, err)
			return fmt.Errorf("dispatch loop: decode message %s: %w", env.ID, err)
		}

		if err := l.processOne(ctx, env.ID, msg); err != nil {
			return err
		}
	}
}

func (l *Loop) processOne(ctx context.Context, msgID string, msg task.Message) error {
	spanCtx, span := tracing.StartProcessMessage(ctx, msgID, msg.Type)
	defer span.End()

	result, err := l.forwarder.Process(spanCtx, msg)
	if err != nil {
		return fmt.Errorf("dispatch loop: handler error for message %s (type=%s): %w", msgID, msg.Type, err)
	}

	switch r := result.(type) {
	case nil:
		log.Printf("dispatch loop: message %s (type=%s): no handler matched", msgID, msg.Type)
	case registry.ContinueResult:
		for _, followOn := range r.Tasks {
			if err := l.publishFollowOn(spanCtx, followOn); err != nil {
				return fmt.Errorf("dispatch loop: republish follow-on from message %s: %w", msgID, err)
			}
		}
		log.Printf("dispatch loop: message %s type=%s status=%d follow_ons=%d", msgID, msg.Type, r.Status, len(r.Tasks))
		l.counters.Routed.Add(1)
		l.counters.FollowOns.Add(int64(len(r.Tasks)))
	case registry.ContinueUnparseableResult:
		log.Printf("dispatch loop: message %s type=%s status=%d unparseable response", msgID, msg.Type, r.Status)
		l.counters.Unparseable.Add(1)
	}

	if result == nil {
		l.counters.Unrouted.Add(1)
	}

	return nil
}

func (l *Loop) publishFollowOn(ctx context.Context, followOn task.Message) error {
	ctx, span := tracing.StartPublishFollowon(ctx, followOn.Type, followOn.Type)
	defer span.End()
	return l.producer.Publish(ctx, followOn.Type, followOn)
}
