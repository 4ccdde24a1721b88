package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tksfz/trampoline/internal/task"
)

// HttpHandler invokes a worker by POSTing the task body as JSON and
// parsing the response as {tasks: [TaskMessage]}. It tolerates
// unparseable responses; it does not interpret the HTTP status code
// beyond passing it through in the result.
type HttpHandler struct {
	client *http.Client
	url    string
}

// NewHttpHandler builds a handler bound to url, sharing client across
// every invocation and every other HttpHandler in the registry.
func NewHttpHandler(client *http.Client, url string) *HttpHandler {
	return &HttpHandler{client: client, url: url}
}

type workerResponse struct {
	Tasks []task.Message `json:"tasks"`
}

// Invoke posts msg.Task (not the whole envelope) and decodes the
// worker's response. Transport-level failures are returned as errors;
// everything else — including a 2xx with an undecodable body — is
// reported through HandleResult.
func (h *HttpHandler) Invoke(ctx context.Context, msg task.Message) (HandleResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(msg.Task))
	if err != nil {
		return nil, fmt.Errorf("http handler %s: build request: %w", h.url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http handler %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http handler %s: read response body: %w", h.url, err)
	}

	var parsed workerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ContinueUnparseableResult{Status: resp.StatusCode, RawText: string(body)}, nil
	}

	return ContinueResult{Status: resp.StatusCode, Tasks: parsed.Tasks}, nil
}
