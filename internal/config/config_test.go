package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatcher.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
[mq]
url = "tcp://localhost:9001"
topics = ["A", "B"]

[[handlers]]
task_selector.type = "A"
endpoint = "http://worker/a"

[[handlers]]
task_selector.type = "B"
pipeline = "./script.tengo"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Mq.Topics) != 2 {
		t.Errorf("expected 2 topics, got %d", len(cfg.Mq.Topics))
	}
	if len(cfg.Handlers) != 2 {
		t.Errorf("expected 2 handlers, got %d", len(cfg.Handlers))
	}
	if cfg.Dispatch.HTTPTimeoutSeconds != defaultHTTPTimeoutSeconds {
		t.Errorf("expected default http timeout %d, got %d", defaultHTTPTimeoutSeconds, cfg.Dispatch.HTTPTimeoutSeconds)
	}
	if cfg.Dispatch.IngressPort != defaultIngressPort {
		t.Errorf("expected default ingress port %d, got %d", defaultIngressPort, cfg.Dispatch.IngressPort)
	}
}

func TestLoadRejectsEmptyTopics(t *testing.T) {
	path := writeTempConfig(t, `
[mq]
url = "tcp://localhost:9001"
topics = []
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for empty topics")
	}
}

func TestLoadRejectsHandlerWithBothEndpointAndPipeline(t *testing.T) {
	path := writeTempConfig(t, `
[mq]
url = "tcp://localhost:9001"
topics = ["A"]

[[handlers]]
task_selector.type = "A"
endpoint = "http://worker/a"
pipeline = "./script.tengo"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for handler with both endpoint and pipeline")
	}
}

func TestLoadRejectsHandlerWithNeitherEndpointNorPipeline(t *testing.T) {
	path := writeTempConfig(t, `
[mq]
url = "tcp://localhost:9001"
topics = ["A"]

[[handlers]]
task_selector.type = "A"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for handler with neither endpoint nor pipeline")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
