// Package projection implements the read side: a registry of handlers,
// each consuming the event stream and maintaining one or more
// denormalized tables, with a cursor-based polling scheduler and
// per-handler failure bookkeeping (spec §4.4).
//
// The catch-up-subscription shape (poll since last cursor, process in
// order, persist cursor after each batch) is adapted from the teacher's
// internal/audit/subscriber.go consumer loop, generalized from a single
// audit consumer into a registry that can host many independent
// handlers running at their own pace.
package projection

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/serbia-gov/iamcore/internal/eventstore"
)

// Executor is the subset of pgx.Tx/pgxpool.Pool a handler needs. Handlers
// are always invoked inside a transaction (Engine.processOne, Rebuild), so
// every Executor passed to Handle is in fact a pgx.Tx.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Handler is the capability every projection handler exposes (spec §9's
// capability-set redesign of the source's handler class hierarchy).
// Concrete handlers are either "declarative" (DeclarativeHandler, a
// table of event-type -> SQL template) or "imperative" (a Go type
// implementing Handler directly, for logic no single SQL statement can
// express — e.g. the audit hash chain, which must read the previous
// entry's hash before computing the next one).
type Handler interface {
	// Name identifies this handler for projection_states/failed_events
	// bookkeeping and for Rebuild.
	Name() string

	// Interested reports whether this handler processes eventType.
	// Returning false for most event types lets the engine skip handlers
	// that have nothing to do with a given event without invoking Handle.
	Interested(eventType string) bool

	// Handle applies one event's effect to this handler's table(s).
	// Invoked inside the same transaction as the cursor advance, so a
	// failure here rolls back both.
	Handle(ctx context.Context, db Executor, event eventstore.Event) error

	// Reset truncates this handler's table(s) so Rebuild can replay the
	// event stream from position zero.
	Reset(ctx context.Context, db Executor) error
}

// DependencyAware is implemented by handlers whose correctness depends
// on another handler's table already being populated (e.g. an
// org-member handler with a foreign key into the organizations table
// populated by the org handler). The engine starts handlers in an order
// that respects these edges (spec §4.4's topological start ordering).
type DependencyAware interface {
	DependsOn() []string
}

// EventFilterer is implemented by handlers that can narrow the store
// query to the event and aggregate types they actually consume (spec
// §4.4.1's per-handler event_types/aggregate_types registry fields).
// The engine passes these through to eventstore.Filter so the store
// does the filtering instead of every handler scanning every event.
type EventFilterer interface {
	EventTypes() []string
	AggregateTypes() []string
}

// DeclarativeRule is one event-type's upsert, expressed as a SQL
// template plus an argument extractor — the "declarative" half of the
// handler split (spec §9).
type DeclarativeRule struct {
	SQL  string
	Args func(event eventstore.Event) ([]any, error)
}

// DeclarativeHandler dispatches each event type to its SQL template.
// Most entity projections (organizations, users, domains, policies) are
// this shape: a 1:1 mapping from event type to upsert statement.
type DeclarativeHandler struct {
	name       string
	rules      map[string]DeclarativeRule
	resetSQL   []string
	eventTypes []string
}

// NewDeclarativeHandler builds a handler named name, interested only in
// events whose type has a rule, that truncates resetTables on Rebuild.
func NewDeclarativeHandler(name string, rules map[string]DeclarativeRule, resetTables ...string) *DeclarativeHandler {
	resetSQL := make([]string, len(resetTables))
	for i, t := range resetTables {
		resetSQL[i] = "TRUNCATE TABLE " + t
	}
	eventTypes := make([]string, 0, len(rules))
	for et := range rules {
		eventTypes = append(eventTypes, et)
	}
	return &DeclarativeHandler{name: name, rules: rules, resetSQL: resetSQL, eventTypes: eventTypes}
}

func (h *DeclarativeHandler) Name() string { return h.name }

func (h *DeclarativeHandler) Interested(eventType string) bool {
	_, ok := h.rules[eventType]
	return ok
}

// EventTypes implements EventFilterer: a declarative handler's rule
// table is exactly the set of event types it cares about.
func (h *DeclarativeHandler) EventTypes() []string { return h.eventTypes }

// AggregateTypes implements EventFilterer. Declarative handlers key
// purely off event type, not aggregate type, so this is always empty —
// the engine only applies an aggregate-type filter for handlers that
// report one.
func (h *DeclarativeHandler) AggregateTypes() []string { return nil }

func (h *DeclarativeHandler) Handle(ctx context.Context, db Executor, event eventstore.Event) error {
	rule, ok := h.rules[event.EventType]
	if !ok {
		return nil
	}
	args, err := rule.Args(event)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, rule.SQL, args...)
	return err
}

func (h *DeclarativeHandler) Reset(ctx context.Context, db Executor) error {
	for _, stmt := range h.resetSQL {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
