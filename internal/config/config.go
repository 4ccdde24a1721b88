// Package config loads and validates the dispatcher's declarative
// configuration: broker connection, topics to consume, and the ordered
// list of handler declarations that the handler registry is built from.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level shape of dispatcher.toml.
type Config struct {
	Mq       MqConfig            `toml:"mq"`
	Handlers []HandlerDecl       `toml:"handlers"`
	Dispatch DispatchConfig      `toml:"dispatch"`
}

// MqConfig names the broker endpoint and the topics consumed at startup.
type MqConfig struct {
	URL    string   `toml:"url"`
	Topics []string `toml:"topics"`
}

// HandlerDecl is one [[handlers]] table: a task selector paired with
// exactly one of Endpoint or Pipeline.
type HandlerDecl struct {
	TaskSelector TaskSelector `toml:"task_selector"`
	Endpoint     string       `toml:"endpoint"`
	Pipeline     string       `toml:"pipeline"`
}

// TaskSelector matches messages by type equality. The shape is
// extensible on the wire (additional keys are ignored today) but only
// equality is implemented, per the registry's matcher contract.
type TaskSelector struct {
	Type string `toml:"type"`
}

// DispatchConfig carries ambient operational knobs a running process
// cannot ship without: an HTTP client timeout and the ingress server's
// listen port.
type DispatchConfig struct {
	HTTPTimeoutSeconds int `toml:"http_timeout_seconds"`
	IngressPort        int `toml:"ingress_port"`
}

const (
	defaultHTTPTimeoutSeconds = 30
	defaultIngressPort        = 2000
)

// Load reads and parses filename, applies defaults, and validates the
// result. Startup fails (non-nil error) if mq.topics is empty, a
// handler carries neither or both of endpoint/pipeline, or a declared
// endpoint URL fails to parse.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Dispatch.HTTPTimeoutSeconds == 0 {
		cfg.Dispatch.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	if cfg.Dispatch.IngressPort == 0 {
		cfg.Dispatch.IngressPort = defaultIngressPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the config is usable before any broker
// connection is attempted.
func (c *Config) Validate() error {
	if len(c.Mq.Topics) == 0 {
		return fmt.Errorf("mq.topics must be non-empty")
	}
	if c.Mq.URL == "" {
		return fmt.Errorf("mq.url is required")
	}
	if c.Dispatch.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("dispatch.http_timeout_seconds cannot be negative: %d", c.Dispatch.HTTPTimeoutSeconds)
	}

	for i, h := range c.Handlers {
		if h.TaskSelector.Type == "" {
			return fmt.Errorf("handlers[%d]: task_selector.type is required", i)
		}
		hasEndpoint := h.Endpoint != ""
		hasPipeline := h.Pipeline != ""
		if hasEndpoint == hasPipeline {
			return fmt.Errorf("handlers[%d] (type=%q): exactly one of endpoint or pipeline is required", i, h.TaskSelector.Type)
		}
		if hasEndpoint {
			if _, err := url.Parse(h.Endpoint); err != nil {
				return fmt.Errorf("handlers[%d] (type=%q): invalid endpoint url: %w", i, h.TaskSelector.Type, err)
			}
		}
	}

	return nil
}
