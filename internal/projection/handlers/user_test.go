package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/serbia-gov/iamcore/internal/domain/user"
	"github.com/serbia-gov/iamcore/internal/eventstore"
)

func TestUserHandlerHumanAddedWritesUserAndLoginName(t *testing.T) {
	h := NewUserHandler()
	payload, _ := json.Marshal(map[string]any{"username": "alice", "owner": "org1"})
	ev := eventstore.Event{InstanceID: "i1", AggregateID: "u1", EventType: user.EventHumanAdded, Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 2 {
		t.Fatalf("expected 2 Exec calls (users + login_names), got %d", len(exec.execs))
	}
}

func TestUserHandlerUsernameChangedReplacesLoginName(t *testing.T) {
	h := NewUserHandler()
	payload, _ := json.Marshal(map[string]any{"username": "alice2"})
	ev := eventstore.Event{InstanceID: "i1", AggregateID: "u1", EventType: user.EventUsernameChanged, Payload: payload}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// update users, delete old login_names, insert new login_name
	if len(exec.execs) != 3 {
		t.Fatalf("expected 3 Exec calls, got %d", len(exec.execs))
	}
}

func TestUserHandlerRemovedClearsLoginName(t *testing.T) {
	h := NewUserHandler()
	ev := eventstore.Event{InstanceID: "i1", AggregateID: "u1", EventType: user.EventRemoved}

	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 2 {
		t.Fatalf("expected 2 Exec calls (state update + login_names delete), got %d", len(exec.execs))
	}
}

func TestUserHandlerMachineKeyLifecycle(t *testing.T) {
	h := NewUserHandler()

	addPayload, _ := json.Marshal(map[string]any{"key_id": "k1", "public_key_pem": "PEM"})
	addEv := eventstore.Event{InstanceID: "i1", AggregateID: "u1", EventType: user.EventMachineKeyAdded, Payload: addPayload}
	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, addEv); err != nil {
		t.Fatalf("Handle added: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec.execs))
	}

	removePayload, _ := json.Marshal(map[string]any{"key_id": "k1"})
	removeEv := eventstore.Event{InstanceID: "i1", AggregateID: "u1", EventType: user.EventMachineKeyRemoved, Payload: removePayload}
	exec2 := &fakeExec{}
	if err := h.Handle(context.Background(), exec2, removeEv); err != nil {
		t.Fatalf("Handle removed: %v", err)
	}
	if len(exec2.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec2.execs))
	}
}

func TestUserHandlerMetadataSetAndRemoved(t *testing.T) {
	h := NewUserHandler()

	setPayload, _ := json.Marshal(map[string]any{"key": "locale", "value": []byte("sr-RS")})
	setEv := eventstore.Event{InstanceID: "i1", AggregateID: "u1", EventType: user.EventMetadataSet, Payload: setPayload}
	exec := &fakeExec{}
	if err := h.Handle(context.Background(), exec, setEv); err != nil {
		t.Fatalf("Handle set: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec.execs))
	}

	removePayload, _ := json.Marshal(map[string]any{"key": "locale"})
	removeEv := eventstore.Event{InstanceID: "i1", AggregateID: "u1", EventType: user.EventMetadataRemoved, Payload: removePayload}
	exec2 := &fakeExec{}
	if err := h.Handle(context.Background(), exec2, removeEv); err != nil {
		t.Fatalf("Handle removed: %v", err)
	}
	if len(exec2.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec2.execs))
	}
}
