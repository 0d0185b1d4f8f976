package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/serbia-gov/iamcore/internal/domain/instance"
	"github.com/serbia-gov/iamcore/internal/domain/org"
	"github.com/serbia-gov/iamcore/internal/eventstore"
)

func TestPolicyHandlersCoverAllSevenFamilies(t *testing.T) {
	hs := NewPolicyHandlers()
	if len(hs) != len(policyTables) {
		t.Fatalf("expected %d handlers, got %d", len(policyTables), len(hs))
	}
	for _, h := range hs {
		if !h.Interested("instance." + h.Name()[len("policy."):] + ".policy.added") {
			t.Fatalf("handler %s not interested in its own instance-level added event", h.Name())
		}
	}
}

func TestLockoutPolicyUpsertAtInstanceScope(t *testing.T) {
	rule := DeclarativeRuleFor(policyTables[0]) // lockout
	payload, _ := json.Marshal(map[string]any{
		"max_password_attempts": 10,
		"max_otp_attempts":      5,
		"show_failures":         true,
	})
	ev := eventstore.Event{
		InstanceID:    "inst1",
		AggregateType: instance.AggregateType,
		AggregateID:   "inst1",
		EventType:     "instance.lockout.policy.added",
		Payload:       payload,
	}
	args, err := rule.Args(ev)
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	// instance_id, policy_id, organization_id, is_default, then 3 family columns
	if len(args) != 7 {
		t.Fatalf("expected 7 args, got %d: %v", len(args), args)
	}
	if args[1] != "default" {
		t.Fatalf("expected policy_id 'default' at instance scope, got %v", args[1])
	}
	if args[2] != nil {
		t.Fatalf("expected nil organization_id at instance scope, got %v", args[2])
	}
	if args[3] != true {
		t.Fatalf("expected is_default=true at instance scope, got %v", args[3])
	}
}

func TestLockoutPolicyUpsertAtOrgScope(t *testing.T) {
	rule := DeclarativeRuleFor(policyTables[0])
	payload, _ := json.Marshal(map[string]any{
		"max_password_attempts": 3,
		"max_otp_attempts":      2,
		"show_failures":         false,
	})
	ev := eventstore.Event{
		InstanceID:    "inst1",
		AggregateType: org.AggregateType,
		AggregateID:   "org1",
		EventType:     "org.lockout.policy.changed",
		Payload:       payload,
	}
	args, err := rule.Args(ev)
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	if args[1] != "org1" {
		t.Fatalf("expected policy_id 'org1' at org scope, got %v", args[1])
	}
	if args[2] != "org1" {
		t.Fatalf("expected organization_id 'org1' at org scope, got %v", args[2])
	}
	if args[3] != false {
		t.Fatalf("expected is_default=false at org scope, got %v", args[3])
	}
}

func TestPolicyHandlerExecutesUpsert(t *testing.T) {
	hs := NewPolicyHandlers()

	payload, _ := json.Marshal(map[string]any{
		"max_password_attempts": 10,
		"max_otp_attempts":      5,
		"show_failures":         true,
	})
	ev := eventstore.Event{
		InstanceID:    "inst1",
		AggregateType: instance.AggregateType,
		AggregateID:   "inst1",
		EventType:     "instance.lockout.policy.added",
		Payload:       payload,
	}

	exec := &fakeExec{}
	if err := hs[0].Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec.execs))
	}
}
