package registry

import "github.com/tksfz/trampoline/internal/task"

// HandleResult is the outcome of invoking a Handler. It is a closed,
// two-variant value: every handler invocation either parses into a
// follow-on task list or does not. Both variants are returned by value;
// callers type-switch rather than branch on a sentinel field.
type HandleResult interface {
	isHandleResult()
}

// ContinueResult is returned when the handler's response parsed into
// the expected {tasks: [...]} shape, possibly with an empty list.
type ContinueResult struct {
	Status int
	Tasks  []task.Message
}

func (ContinueResult) isHandleResult() {}

// ContinueUnparseableResult is returned when the handler produced a
// non-fatal response that could not be decoded into the expected
// shape. It never yields follow-on publications.
type ContinueUnparseableResult struct {
	Status  int
	RawText string
}

func (ContinueUnparseableResult) isHandleResult() {}
