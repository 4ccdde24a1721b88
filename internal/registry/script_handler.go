package registry

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/tksfz/trampoline/internal/task"
)

// scriptHarness is appended to every compiled script source. The
// script itself defines handle(type_name, task_json); the harness
// calls it and exposes the result under a global the host can read
// back out after Run, since tengo scripts communicate with the host
// only through pre-declared globals, not return values.
const scriptHarness = "\n___out := handle(___type_name, ___task_json)\n"

// ScriptHandler executes a compiled tengo script in a fresh VM clone
// per invocation, mirroring the original Rune handler's compile-once,
// VM-per-call lifecycle: the compiled unit and its capability modules
// are built once at startup; Invoke only clones and runs.
type ScriptHandler struct {
	path     string
	compiled *tengo.Compiled
}

// NewScriptHandler reads and compiles the script at path. Compilation
// failures are startup errors (registry construction fails), never
// runtime errors.
func NewScriptHandler(path string, client *http.Client) (*ScriptHandler, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script handler %s: read source: %w", path, err)
	}

	s := tengo.NewScript(append(src, []byte(scriptHarness)...))
	imports := stdlib.GetModuleMap("json")
	imports.AddBuiltinModule("http", scriptHTTPModule(client))
	imports.AddBuiltinModule("trampoline", trampolineModule())
	s.SetImports(imports)

	if err := s.Add("___type_name", ""); err != nil {
		return nil, fmt.Errorf("script handler %s: declare ___type_name: %w", path, err)
	}
	if err := s.Add("___task_json", ""); err != nil {
		return nil, fmt.Errorf("script handler %s: declare ___task_json: %w", path, err)
	}

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("script handler %s: compile: %w", path, err)
	}

	return &ScriptHandler{path: path, compiled: compiled}, nil
}

// scriptTask is the shape the trampoline module's task() constructor
// produces and the shape Invoke expects back in ___out: a list of
// these, one per follow-on.
type scriptTask struct {
	Type string      `json:"type"`
	Task interface{} `json:"task"`
}

// Invoke clones the compiled unit, binds this call's arguments, and
// runs it. One VM per invocation — no mutable state crosses calls.
func (h *ScriptHandler) Invoke(ctx context.Context, msg task.Message) (HandleResult, error) {
	clone := h.compiled.Clone()

	if err := clone.Set("___type_name", msg.Type); err != nil {
		return nil, fmt.Errorf("script handler %s: bind type: %w", h.path, err)
	}
	if err := clone.Set("___task_json", string(msg.Task)); err != nil {
		return nil, fmt.Errorf("script handler %s: bind task: %w", h.path, err)
	}

	if err := clone.RunContext(ctx); err != nil {
		return nil, fmt.Errorf("script handler %s: %w", h.path, err)
	}

	out := clone.Get("___out")
	if out == nil || out.IsUndefined() {
		return nil, fmt.Errorf("script handler %s: handle() did not return a value", h.path)
	}

	return decodeScriptResult(h.path, out)
}
