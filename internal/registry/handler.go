package registry

import (
	"context"

	"github.com/tksfz/trampoline/internal/task"
)

// Handler resolves one task type to a concrete invocation: an HTTP
// worker endpoint or a compiled script. The registry exclusively owns
// all Handler values for the process lifetime; they are immutable
// after construction.
type Handler interface {
	Invoke(ctx context.Context, msg task.Message) (HandleResult, error)
}
