package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tksfz/trampoline/internal/task"
)

// TestScriptHandlerFanOut covers a script's handle() returning three
// follow-on tasks of type T.
func TestScriptHandlerFanOut(t *testing.T) {
	h, err := NewScriptHandler("testdata/fanout.tengo", &http.Client{})
	if err != nil {
		t.Fatalf("NewScriptHandler failed: %v", err)
	}

	result, err := h.Invoke(context.Background(), task.Message{Type: "S", Task: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	cont, ok := result.(ContinueResult)
	if !ok {
		t.Fatalf("expected ContinueResult, got %T", result)
	}
	if len(cont.Tasks) != 3 {
		t.Fatalf("expected 3 follow-on tasks, got %d", len(cont.Tasks))
	}
	for i, tk := range cont.Tasks {
		if tk.Type != "T" {
			t.Errorf("task[%d]: expected type T, got %s", i, tk.Type)
		}
		var payload struct {
			I int `json:"i"`
		}
		if err := json.Unmarshal(tk.Task, &payload); err != nil {
			t.Fatalf("task[%d]: unmarshal payload: %v", i, err)
		}
		if payload.I != i {
			t.Errorf("task[%d]: expected i=%d, got %d", i, i, payload.I)
		}
	}
}

// TestScriptHandlerInvocationsAreIsolated runs the same compiled
// script twice concurrently-in-spirit (sequentially here, but via
// separate VM clones) and checks no state leaks between invocations.
func TestScriptHandlerInvocationsAreIsolated(t *testing.T) {
	h, err := NewScriptHandler("testdata/fanout.tengo", &http.Client{})
	if err != nil {
		t.Fatalf("NewScriptHandler failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		result, err := h.Invoke(context.Background(), task.Message{Type: "S", Task: json.RawMessage(`{}`)})
		if err != nil {
			t.Fatalf("Invoke %d failed: %v", i, err)
		}
		cont, ok := result.(ContinueResult)
		if !ok || len(cont.Tasks) != 3 {
			t.Fatalf("invocation %d: expected 3 tasks, got %+v", i, result)
		}
	}
}
