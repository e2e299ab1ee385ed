// Package message defines the envelope exchanged by the frame and NATS
// transports.
//
// A request envelope names the operation and carries the JSON encoded
// request. A response envelope carries either the JSON encoded response or
// an error message with a status code.
package message

import (
	"encoding/json"
	"fmt"
)

type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Operation string          `json:"operation"`
	Status    uint16          `json:"status,omitempty"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StatusError is used for failures that carry no more specific status.
const StatusError uint16 = 500

// Request builds a request envelope, encoding input as JSON. A nil input
// leaves the payload empty.
func Request(id, operation string, input any) (*Envelope, error) {
	env := &Envelope{ID: id, Operation: operation}
	if input == nil {
		return env, nil
	}
	b, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", operation, err)
	}
	env.Payload = b
	return env, nil
}

// Reply builds the response envelope for req.
func Reply(req *Envelope, output any) (*Envelope, error) {
	env := &Envelope{ID: req.ID, Operation: req.Operation}
	if output == nil {
		return env, nil
	}
	b, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("encode %s response: %w", req.Operation, err)
	}
	env.Payload = b
	return env, nil
}

// Fail builds an error response envelope for req.
func Fail(req *Envelope, status uint16, msg string) *Envelope {
	if status == 0 {
		status = StatusError
	}
	return &Envelope{ID: req.ID, Operation: req.Operation, Status: status, Error: msg}
}

// Failed reports whether the envelope carries an error.
func (e *Envelope) Failed() bool {
	return e.Error != "" || e.Status >= 400
}
