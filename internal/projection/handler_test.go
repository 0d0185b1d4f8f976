package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/serbia-gov/iamcore/internal/eventstore"
)

func TestDeclarativeHandlerDispatchesByEventType(t *testing.T) {
	rule := DeclarativeRule{
		SQL: "UPDATE widgets SET name = $2 WHERE id = $1",
		Args: func(ev eventstore.Event) ([]any, error) {
			return []any{ev.AggregateID, string(ev.Payload)}, nil
		},
	}
	h := NewDeclarativeHandler("widget", map[string]DeclarativeRule{
		"widget.renamed": rule,
	}, "widgets")

	if !h.Interested("widget.renamed") {
		t.Fatal("expected handler to be interested in widget.renamed")
	}
	if h.Interested("widget.deleted") {
		t.Fatal("expected handler to ignore widget.deleted")
	}

	exec := &fakeExec{}
	ev := eventstore.Event{AggregateID: "w1", EventType: "widget.renamed", Payload: []byte(`"new-name"`)}
	if err := h.Handle(context.Background(), exec, ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected 1 Exec call, got %d", len(exec.execs))
	}
	if exec.execs[0].args[0] != "w1" {
		t.Fatalf("expected aggregate id arg, got %v", exec.execs[0].args[0])
	}

	// An uninteresting event type is a no-op, not an error.
	if err := h.Handle(context.Background(), exec, eventstore.Event{EventType: "widget.deleted"}); err != nil {
		t.Fatalf("Handle on unmatched event type should be a no-op, got %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected no additional Exec call, got %d total", len(exec.execs))
	}
}

func TestDeclarativeHandlerResetTruncatesConfiguredTables(t *testing.T) {
	h := NewDeclarativeHandler("widget", map[string]DeclarativeRule{}, "widgets", "widget_aliases")
	exec := &fakeExec{}
	if err := h.Reset(context.Background(), exec); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(exec.execs) != 2 {
		t.Fatalf("expected 2 TRUNCATE statements, got %d", len(exec.execs))
	}
}

func TestDeclarativeHandlerArgsErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	h := NewDeclarativeHandler("widget", map[string]DeclarativeRule{
		"widget.renamed": {
			SQL: "SELECT 1",
			Args: func(ev eventstore.Event) ([]any, error) {
				return nil, boom
			},
		},
	})
	exec := &fakeExec{}
	err := h.Handle(context.Background(), exec, eventstore.Event{EventType: "widget.renamed"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected Args error to propagate, got %v", err)
	}
	if len(exec.execs) != 0 {
		t.Fatalf("expected no Exec call when Args fails, got %d", len(exec.execs))
	}
}
