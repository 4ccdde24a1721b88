// Package forwarder implements per-message orchestration: look up a
// handler, invoke it, and hand back its HandleResult untouched.
package forwarder

import (
	"context"
	"log"

	"github.com/tksfz/trampoline/internal/registry"
	"github.com/tksfz/trampoline/internal/task"
)

// Forwarder resolves and invokes the handler for a single message. It
// performs no retry, no schema validation of msg.Task beyond what the
// handler itself does, and no modification of the tasks a handler
// returns.
type Forwarder struct {
	registry *registry.Registry
}

// New builds a Forwarder bound to reg.
func New(reg *registry.Registry) *Forwarder {
	return &Forwarder{registry: reg}
}

// Process looks up a handler for msg and invokes it. A nil result with
// a nil error means no handler matched. Any handler error is
// propagated to the caller unchanged.
func (f *Forwarder) Process(ctx context.Context, msg task.Message) (registry.HandleResult, error) {
	handler, ok := f.registry.Match(msg)
	if !ok {
		return nil, nil
	}

	result, err := handler.Invoke(ctx, msg)
	if err != nil {
		return nil, err
	}

	switch r := result.(type) {
	case registry.ContinueResult:
		log.Printf("forwarder: type=%s status=%d follow_ons=%d", msg.Type, r.Status, len(r.Tasks))
	case registry.ContinueUnparseableResult:
		log.Printf("forwarder: type=%s status=%d response unparseable (%d bytes)", msg.Type, r.Status, len(r.RawText))
	}

	return result, nil
}
