// Package registry builds and queries the dispatcher's routing table:
// the static, config-driven mapping from a task's type name to a
// concrete Handler (an HTTP endpoint or a compiled script).
package registry

import (
	"fmt"
	"net/http"

	"github.com/tksfz/trampoline/internal/config"
	"github.com/tksfz/trampoline/internal/task"
)

// route pairs an ordered matcher with the key of the handler it
// resolves to. Kept as an ordered slice rather than a type->Handler
// map so that first-match-over-declaration-order holds even once
// selectors grow past plain type equality.
type route struct {
	matches    func(task.Message) bool
	handlerKey string
}

// Registry is the immutable, post-startup routing table. It is safe
// for concurrent use without locking: nothing mutates it after
// NewRegistry returns.
type Registry struct {
	routes   []route
	handlers map[string]Handler
}

// NewRegistry validates every declaration, compiles/connects the
// handlers it names (deduplicating identical endpoints or scripts so
// they share one compiled Handler), and builds the ordered routing
// list. Any failure aborts with a diagnostic naming the declaration.
func NewRegistry(decls []config.HandlerDecl, httpClient *http.Client) (*Registry, error) {
	reg := &Registry{
		handlers: make(map[string]Handler),
	}

	for i, decl := range decls {
		if decl.TaskSelector.Type == "" {
			return nil, fmt.Errorf("handlers[%d]: task_selector.type is required", i)
		}

		var key string
		switch {
		case decl.Endpoint != "" && decl.Pipeline != "":
			return nil, fmt.Errorf("handlers[%d] (type=%q): exactly one of endpoint or pipeline is required", i, decl.TaskSelector.Type)
		case decl.Endpoint != "":
			key = "endpoint:" + decl.Endpoint
			if _, exists := reg.handlers[key]; !exists {
				reg.handlers[key] = NewHttpHandler(httpClient, decl.Endpoint)
			}
		case decl.Pipeline != "":
			key = "pipeline:" + decl.Pipeline
			if _, exists := reg.handlers[key]; !exists {
				h, err := NewScriptHandler(decl.Pipeline, httpClient)
				if err != nil {
					return nil, fmt.Errorf("handlers[%d] (type=%q): %w", i, decl.TaskSelector.Type, err)
				}
				reg.handlers[key] = h
			}
		default:
			return nil, fmt.Errorf("handlers[%d] (type=%q): exactly one of endpoint or pipeline is required", i, decl.TaskSelector.Type)
		}

		wantType := decl.TaskSelector.Type
		reg.routes = append(reg.routes, route{
			matches:    func(msg task.Message) bool { return msg.Type == wantType },
			handlerKey: key,
		})
	}

	return reg, nil
}

// Match scans the routing list in declaration order and returns the
// handler associated with the first matching selector. Lookup never
// fails; an unrouted message simply returns (nil, false).
func (r *Registry) Match(msg task.Message) (Handler, bool) {
	for _, rt := range r.routes {
		if rt.matches(msg) {
			return r.handlers[rt.handlerKey], true
		}
	}
	return nil, false
}
