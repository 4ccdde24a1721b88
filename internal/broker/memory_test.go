package broker

import (
	"context"
	"testing"
	"time"

	"github.com/tksfz/trampoline/internal/task"
)

func TestMemoryPublishAndPull(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	msg, _ := task.New("A", map[string]int{"n": 1})
	if err := m.Publish(ctx, "A", msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	env, err := m.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if env.Topic != "A" {
		t.Errorf("expected topic A, got %s", env.Topic)
	}
	if env.ID == "" {
		t.Error("expected non-empty envelope id")
	}
}

func TestMemoryPullBlocksUntilPublish(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	result := make(chan *Envelope, 1)
	go func() {
		env, err := m.Pull(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		result <- env
	}()

	time.Sleep(20 * time.Millisecond)
	msg, _ := task.New("B", map[string]int{})
	if err := m.Publish(ctx, "B", msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case env := <-result:
		if env.Topic != "B" {
			t.Errorf("expected topic B, got %s", env.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Pull to unblock")
	}
}

func TestMemoryPullReturnsOnContextCancel(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Pull(ctx); err == nil {
		t.Error("expected error from Pull with cancelled context")
	}
}
