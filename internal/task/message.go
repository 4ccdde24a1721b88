// Package task defines the wire-level envelope carried between the
// message bus and the dispatcher, and between the dispatcher and workers.
//
// A TaskMessage is deliberately thin: a type name used for routing and a
// free-form JSON payload the dispatcher never inspects. Richer envelope
// metadata (trace ids, hop counts, headers) is a dispatcher-side concern
// (see internal/tracing) and never rides on the wire alongside the task.
package task

import "encoding/json"

// Message is the wire-level envelope: {type, task}. Type selects both the
// handler a message is routed to and the topic a follow-on is republished
// on. Task is opaque JSON, preserved byte-for-byte across every handler —
// the dispatcher never unmarshals it into anything but json.RawMessage.
type Message struct {
	Type string          `json:"type"`
	Task json.RawMessage `json:"task"`
}

// New builds a Message from a type name and any JSON-marshalable value.
func New(typeName string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typeName, Task: raw}, nil
}

// Decode parses a Message from raw wire bytes. Unknown keys are ignored.
// Decoding fails only if the payload is not valid JSON or type is missing,
// not a string, or empty — all hard errors per the dispatch loop's decode
// policy (see internal/dispatch).
func Decode(data []byte) (Message, error) {
	var wire struct {
		Type json.RawMessage `json:"type"`
		Task json.RawMessage `json:"task"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, &DecodeError{Reason: "invalid JSON", Err: err}
	}

	var typeName string
	if wire.Type == nil {
		return Message{}, &DecodeError{Reason: "missing \"type\" field"}
	}
	if err := json.Unmarshal(wire.Type, &typeName); err != nil {
		return Message{}, &DecodeError{Reason: "\"type\" field is not a string", Err: err}
	}
	if typeName == "" {
		return Message{}, &DecodeError{Reason: "\"type\" field is empty"}
	}

	taskValue := wire.Task
	if taskValue == nil {
		taskValue = json.RawMessage("null")
	}

	return Message{Type: typeName, Task: taskValue}, nil
}

// ToJSON serializes the message to its wire form.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate reports whether the message satisfies the minimal envelope
// invariant: a non-empty type. Task may legitimately be any JSON value,
// including null, so it is not validated further.
func (m Message) Validate() error {
	if m.Type == "" {
		return &DecodeError{Reason: "\"type\" field is empty"}
	}
	return nil
}

// DecodeError reports why a wire payload could not be decoded into a
// Message. It is a hard, fatal condition for the dispatch loop (see
// internal/dispatch) — it indicates a protocol mismatch, not a routing
// or handler failure.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode task message: " + e.Reason + ": " + e.Err.Error()
	}
	return "decode task message: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }
