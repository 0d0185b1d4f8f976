package projection

import (
	"context"
	"testing"

	"github.com/serbia-gov/iamcore/internal/eventstore"
)

type stubHandler struct {
	name    string
	depends []string
}

func (h stubHandler) Name() string                     { return h.name }
func (h stubHandler) Interested(eventType string) bool  { return true }
func (h stubHandler) Handle(ctx context.Context, db Executor, ev eventstore.Event) error { return nil }
func (h stubHandler) Reset(ctx context.Context, db Executor) error                       { return nil }
func (h stubHandler) DependsOn() []string               { return h.depends }

func TestStartOrderRespectsDependencies(t *testing.T) {
	r := NewRegistry()
	r.Register(stubHandler{name: "org"})
	r.Register(stubHandler{name: "org_member", depends: []string{"org"}})
	r.Register(stubHandler{name: "user"})

	order, err := r.StartOrder()
	if err != nil {
		t.Fatalf("StartOrder: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 handlers, got %d", len(order))
	}

	pos := make(map[string]int, len(order))
	for i, h := range order {
		pos[h.Name()] = i
	}
	if pos["org"] >= pos["org_member"] {
		t.Fatalf("org must start before org_member: order=%v", namesOf(order))
	}
}

func TestStartOrderDetectsCycle(t *testing.T) {
	r := NewRegistry()
	r.Register(stubHandler{name: "a", depends: []string{"b"}})
	r.Register(stubHandler{name: "b", depends: []string{"a"}})

	if _, err := r.StartOrder(); err == nil {
		t.Fatal("expected cycle detection error, got nil")
	}
}

func TestStartOrderUnknownDependency(t *testing.T) {
	r := NewRegistry()
	r.Register(stubHandler{name: "a", depends: []string{"ghost"}})

	if _, err := r.StartOrder(); err == nil {
		t.Fatal("expected unknown-dependency error, got nil")
	}
}

func namesOf(hs []Handler) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name()
	}
	return out
}
