package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tksfz/trampoline/internal/metrics"
	"github.com/tksfz/trampoline/internal/task"
)

type recordingProducer struct {
	published []publishedMessage
	failNext  bool
}

type publishedMessage struct {
	topic string
	msg   task.Message
}

func (p *recordingProducer) Publish(ctx context.Context, topic string, msg task.Message) error {
	if p.failNext {
		p.failNext = false
		return context.DeadlineExceeded
	}
	p.published = append(p.published, publishedMessage{topic: topic, msg: msg})
	return nil
}

func TestSubmitRawPublishesOnTypeTopic(t *testing.T) {
	producer := &recordingProducer{}
	srv := New(producer, &metrics.Counters{})

	req := httptest.NewRequest(http.MethodPost, "/tasks/submit_raw", strings.NewReader(`{"type":"A","task":{}}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(producer.published) != 1 || producer.published[0].topic != "A" {
		t.Fatalf("expected one publish to topic A, got %+v", producer.published)
	}

	var body map[string]bool
	json.NewDecoder(rec.Body).Decode(&body)
	if !body["successful"] {
		t.Error("expected successful:true in response body")
	}
}

func TestSubmitTypedPublishesOnPathTopic(t *testing.T) {
	producer := &recordingProducer{}
	srv := New(producer, &metrics.Counters{})

	req := httptest.NewRequest(http.MethodPost, "/tasks/Foo/submit", strings.NewReader(`{"x":1}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(producer.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(producer.published))
	}
	if producer.published[0].topic != "Foo" {
		t.Errorf("expected topic Foo, got %s", producer.published[0].topic)
	}
	if string(producer.published[0].msg.Task) != `{"x":1}` {
		t.Errorf("expected task body preserved, got %s", producer.published[0].msg.Task)
	}
}

func TestPublishFailureReturns500(t *testing.T) {
	producer := &recordingProducer{failNext: true}
	srv := New(producer, &metrics.Counters{})

	req := httptest.NewRequest(http.MethodPost, "/tasks/submit_raw", strings.NewReader(`{"type":"A","task":{}}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHealthzReturnsCounters(t *testing.T) {
	counters := &metrics.Counters{}
	counters.Consumed.Add(3)
	srv := New(&recordingProducer{}, counters)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var snapshot metrics.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode healthz body: %v", err)
	}
	if snapshot.Consumed != 3 {
		t.Errorf("expected consumed=3, got %d", snapshot.Consumed)
	}
}
