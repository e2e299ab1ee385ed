package message

import (
	"encoding/json"
	"testing"
)

func TestRequestEncodesPayload(t *testing.T) {
	req, err := Request("call-1", "getUser", map[string]any{"userId": 1})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(req.Payload) != `{"userId":1}` {
		t.Fatalf("unexpected payload %s", req.Payload)
	}

	empty, err := Request("call-2", "health", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if empty.Payload != nil {
		t.Fatalf("expected empty payload, got %s", empty.Payload)
	}

	if _, err := Request("call-3", "bad", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestReplyAndFail(t *testing.T) {
	req := &Envelope{ID: "call-1", Operation: "getUser"}

	ok, err := Reply(req, map[string]any{"id": 1})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if ok.ID != "call-1" || ok.Failed() {
		t.Fatalf("unexpected reply %+v", ok)
	}

	bad := Fail(req, 0, "Invalid user ID")
	if !bad.Failed() || bad.Status != StatusError || bad.Error != "Invalid user ID" {
		t.Fatalf("unexpected failure %+v", bad)
	}
}

func TestEnvelopeJSON(t *testing.T) {
	env := &Envelope{ID: "x", Operation: "createUser", Payload: json.RawMessage(`{"name":"Alice"}`)}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"id":"x","operation":"createUser","payload":{"name":"Alice"}}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}
