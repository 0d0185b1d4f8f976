package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/serbia-gov/iamcore/internal/domain/org"
	"github.com/serbia-gov/iamcore/internal/eventstore"
)

func TestOrgHandlerAdded(t *testing.T) {
	h := NewOrgHandler()
	payload, _ := json.Marshal(map[string]any{"name": "Acme"})
	ev := eventstore.Event{InstanceID: "i1", AggregateID: "o1", EventType: org.EventAdded, Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec.execs))
	}
}

func TestOrgHandlerSetPrimaryDomainClearsThenSets(t *testing.T) {
	h := NewOrgHandler()
	payload, _ := json.Marshal(map[string]any{"domain": "acme.example"})
	ev := eventstore.Event{InstanceID: "i1", AggregateID: "o1", EventType: org.EventDomainPrimarySet, Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 2 {
		t.Fatalf("expected clear-then-set (2 Exec calls), got %d", len(exec.execs))
	}
}

func TestOrgHandlerMemberAddedAndRemoved(t *testing.T) {
	h := NewOrgHandler()

	addPayload, _ := json.Marshal(map[string]any{"user_id": "u1", "roles": []string{"ORG_OWNER"}})
	addEv := eventstore.Event{InstanceID: "i1", AggregateID: "o1", EventType: org.EventMemberAdded, Payload: addPayload}
	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, addEv); err != nil {
		t.Fatalf("Handle added: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call for member added, got %d", len(exec.execs))
	}

	removePayload, _ := json.Marshal(map[string]any{"user_id": "u1"})
	removeEv := eventstore.Event{InstanceID: "i1", AggregateID: "o1", EventType: org.EventMemberRemoved, Payload: removePayload}
	exec2 := &fakeExec{}
	if err := h.Handle(context.Background(), exec2, removeEv); err != nil {
		t.Fatalf("Handle removed: %v", err)
	}
	if len(exec2.execs) != 1 {
		t.Fatalf("expected 1 Exec call for member removed, got %d", len(exec2.execs))
	}
}

func TestOrgHandlerIgnoresUnknownEventType(t *testing.T) {
	h := NewOrgHandler()
	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, eventstore.Event{EventType: "org.unknown"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 0 {
		t.Fatalf("expected no Exec calls for an unhandled event type, got %d", len(exec.execs))
	}
}

func TestOrgHandlerResetTruncatesAllThreeTables(t *testing.T) {
	h := NewOrgHandler()
	exec := &fakeExec{}
	if err := h.Reset(context.Background(), exec); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(exec.execs) != 3 {
		t.Fatalf("expected 3 TRUNCATE statements, got %d", len(exec.execs))
	}
}
