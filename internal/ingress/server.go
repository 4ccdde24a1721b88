// Package ingress implements the dispatcher's small submission API:
// endpoints that accept new tasks from external clients and publish
// them onto the bus, seeding a pipeline.
package ingress

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/tksfz/trampoline/internal/broker"
	"github.com/tksfz/trampoline/internal/metrics"
	"github.com/tksfz/trampoline/internal/task"
)

// Server exposes the ingress HTTP surface on a fixed local port.
// Concurrent submissions are handled by ServeMux's usual one-handler-
// per-request model; the shared Producer serializes the actual
// publish (see broker.SerializedProducer).
type Server struct {
	producer broker.Producer
	counters *metrics.Counters
	mux      *http.ServeMux
}

// New builds a Server and registers its routes.
func New(producer broker.Producer, counters *metrics.Counters) *Server {
	s := &Server{producer: producer, counters: counters, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /{$}", s.handleHealthProbe)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("POST /tasks/submit_raw", s.handleSubmitRaw)
	s.mux.HandleFunc("POST /tasks/{type}/submit", s.handleSubmitTyped)

	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthProbe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("trampoline dispatcher"))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.counters.Snapshot())
}

func (s *Server) handleSubmitRaw(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	msg, err := task.Decode(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.publish(w, r, msg.Type, msg)
}

func (s *Server) handleSubmitTyped(w http.ResponseWriter, r *http.Request) {
	typeName := r.PathValue("type")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	msg := task.Message{Type: typeName, Task: body}
	s.publish(w, r, typeName, msg)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request, topic string, msg task.Message) {
	if err := s.producer.Publish(r.Context(), topic, msg); err != nil {
		log.Printf("ingress: publish to %q failed: %v", topic, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"successful": true})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
}
