package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tksfz/trampoline/internal/task"
)

func TestHttpHandlerParsesTasksResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"n":1}` {
			t.Errorf("expected task body to be posted verbatim, got %s", body)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"tasks":[{"type":"B","task":{"n":1}}]}`))
	}))
	defer srv.Close()

	h := NewHttpHandler(srv.Client(), srv.URL)
	result, err := h.Invoke(context.Background(), task.Message{Type: "A", Task: []byte(`{"n":1}`)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	cont, ok := result.(ContinueResult)
	if !ok {
		t.Fatalf("expected ContinueResult, got %T", result)
	}
	if len(cont.Tasks) != 1 || cont.Tasks[0].Type != "B" {
		t.Errorf("unexpected follow-on tasks: %+v", cont.Tasks)
	}
}

func TestHttpHandlerReturnsUnparseableOnBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	h := NewHttpHandler(srv.Client(), srv.URL)
	result, err := h.Invoke(context.Background(), task.Message{Type: "A", Task: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	unparseable, ok := result.(ContinueUnparseableResult)
	if !ok {
		t.Fatalf("expected ContinueUnparseableResult, got %T", result)
	}
	if unparseable.RawText != "not json" {
		t.Errorf("expected raw text preserved, got %q", unparseable.RawText)
	}
}

func TestHttpHandlerEmptyTasksIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tasks":[]}`))
	}))
	defer srv.Close()

	h := NewHttpHandler(srv.Client(), srv.URL)
	result, err := h.Invoke(context.Background(), task.Message{Type: "A", Task: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	cont, ok := result.(ContinueResult)
	if !ok {
		t.Fatalf("expected ContinueResult, got %T", result)
	}
	if len(cont.Tasks) != 0 {
		t.Errorf("expected zero follow-on tasks, got %d", len(cont.Tasks))
	}
}

func TestHttpHandlerTransportErrorIsReturnedAsError(t *testing.T) {
	h := NewHttpHandler(http.DefaultClient, "http://127.0.0.1:1")
	_, err := h.Invoke(context.Background(), task.Message{Type: "A", Task: []byte(`{}`)})
	if err == nil {
		t.Error("expected transport error for unreachable endpoint")
	}
}
