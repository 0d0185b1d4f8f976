package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/serbia-gov/iamcore/internal/domain/org"
	"github.com/serbia-gov/iamcore/internal/eventstore"
)

func TestTextHandlerSetAtInstanceScope(t *testing.T) {
	h := NewTextHandler()
	payload, _ := json.Marshal(map[string]any{"key": "login.title", "language": "sr", "text": "Prijava"})
	ev := eventstore.Event{InstanceID: "i1", AggregateID: "i1", EventType: "instance.custom_text.set", Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec.execs))
	}
	if exec.execs[0].args[1] != "" {
		t.Fatalf("expected empty organization_id at instance scope, got %v", exec.execs[0].args[1])
	}
}

func TestTextHandlerSetAtOrgScope(t *testing.T) {
	h := NewTextHandler()
	payload, _ := json.Marshal(map[string]any{"key": "login.title", "language": "sr", "text": "Prijava"})
	ev := eventstore.Event{InstanceID: "i1", AggregateType: org.AggregateType, AggregateID: "o1", EventType: "org.custom_text.set", Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if exec.execs[0].args[1] != "o1" {
		t.Fatalf("expected organization_id 'o1' at org scope, got %v", exec.execs[0].args[1])
	}
}

func TestTextHandlerReset(t *testing.T) {
	h := NewTextHandler()
	payload, _ := json.Marshal(map[string]any{"key": "login.title", "language": "sr"})
	ev := eventstore.Event{InstanceID: "i1", EventType: "instance.custom_text.reset", Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 DELETE statement, got %d", len(exec.execs))
	}
}

func TestTextHandlerMessageTextSet(t *testing.T) {
	h := NewTextHandler()
	payload, _ := json.Marshal(map[string]any{
		"message_type": "verify_email",
		"language":     "sr",
		"subject":      "Potvrdite email",
		"body":         "Kliknite ovde",
	})
	ev := eventstore.Event{InstanceID: "i1", EventType: "instance.custom_message_text.set", Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec.execs))
	}
}
