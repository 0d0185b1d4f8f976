// Package eventstore defines the durable append-only event log (spec §3.1,
// §4.1): the Event/Position/Filter/Command shapes and the Store interface
// every write model, command, and projection handler programs against.
// internal/pgeventstore provides the Postgres-backed implementation.
package eventstore

import (
	"context"
	"time"
)

// Position totally orders events across every instance (spec §3.1,
// glossary "Position"). Ties at the same GlobalPosition (events committed
// in the same transaction) are broken by InTxOrder.
type Position struct {
	GlobalPosition int64
	InTxOrder      int
}

// Less reports whether p sorts strictly before other.
func (p Position) Less(other Position) bool {
	if p.GlobalPosition != other.GlobalPosition {
		return p.GlobalPosition < other.GlobalPosition
	}
	return p.InTxOrder < other.InTxOrder
}

// Zero is the position before any event has ever been committed.
var Zero = Position{}

// Event is an immutable fact (spec §3.1). Payload is a schemaless JSON
// document; decoding into a typed struct is the write model's and
// projection handler's responsibility, keyed by (EventType, Revision).
type Event struct {
	InstanceID       string
	AggregateType    string
	AggregateID      string
	AggregateVersion int
	EventType        string
	Revision         int
	Position         Position
	Creator          string
	Owner            string
	CreatedAt        time.Time
	Payload          []byte
}

// Command is a not-yet-persisted event (spec §3.3): the command pipeline
// builds one or more of these and hands them to Store.Push/PushMany.
// AggregateVersion is left zero; the store assigns
// `max(existing version for this aggregate) + 1`.
type Command struct {
	InstanceID    string
	AggregateType string
	AggregateID   string
	EventType     string
	Revision      int
	Creator       string
	Owner         string
	Payload       []byte
}

// Filter selects events for Query/FilterToReducer/Subscribe. Zero-value
// fields are not applied; every non-empty field conjuncts (spec §4.1).
type Filter struct {
	InstanceID      string
	AggregateTypes  []string
	AggregateIDs    []string
	EventTypes      []string
	Owner           string
	Creator         string
	CreatedAfter    time.Time
	CreatedBefore   time.Time
	PositionAfter   Position
}

// Reducer folds one event into a write model's in-memory state. Unknown
// event types must be ignored for forward compatibility (spec §4.2).
type Reducer interface {
	Reduce(event Event) error
}

// ReducerFunc adapts a function to a Reducer.
type ReducerFunc func(event Event) error

func (f ReducerFunc) Reduce(event Event) error { return f(event) }

// Subscription is a best-effort stream of events committed after a given
// position; a Store may implement this with LISTEN/NOTIFY, polling, or
// both. Subscriptions never replace Query — a consumer that wants a
// consistent replay must poll with FilterToReducer/Query.
type Subscription interface {
	// Events yields events as they are detected. The channel closes when
	// ctx is canceled or the subscription's Close is called.
	Events() <-chan Event
	Err() error
	Close()
}

// Store is the full event-store contract (spec §4.1).
type Store interface {
	// Push appends one command as a new event, assigning its
	// AggregateVersion and Position atomically.
	Push(ctx context.Context, cmd Command) (Event, error)

	// PushMany appends every command as one atomic batch: either all
	// events persist with contiguous positions, or none do (spec §8.1
	// invariant 9 "Atomic batch").
	PushMany(ctx context.Context, cmds []Command) ([]Event, error)

	// PushWithConcurrencyCheck behaves like PushMany but first verifies
	// the named aggregate's current max version equals expectedVersion,
	// else fails with a ConcurrencyConflict (errors.KindConcurrencyConflict).
	PushWithConcurrencyCheck(ctx context.Context, instanceID, aggregateType, aggregateID string, expectedVersion int, cmds []Command) ([]Event, error)

	// Query returns up to limit events matching filter, ordered by
	// (position asc, in_tx_order asc). limit <= 0 means no limit.
	Query(ctx context.Context, filter Filter, limit int) ([]Event, error)

	// FilterToReducer streams every event matching filter, in position
	// order, into reducer. Used by write-model Load.
	FilterToReducer(ctx context.Context, filter Filter, reducer Reducer) error

	// LatestPosition returns the position of the most recently committed
	// event store-wide, or Zero if the store is empty.
	LatestPosition(ctx context.Context) (Position, error)

	// LatestEvent returns the most recent event matching filter, or
	// (Event{}, false, nil) if none match.
	LatestEvent(ctx context.Context, filter Filter) (Event, bool, error)

	// Subscribe returns a best-effort stream of new events matching
	// filter, committed after filter.PositionAfter.
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)

	// DistinctInstanceIDs returns every instance_id that has at least one
	// event, for operational tooling (tenant enumeration, rebuild-all).
	DistinctInstanceIDs(ctx context.Context) ([]string, error)

	// AggregateVersion returns the current max aggregate_version for the
	// named aggregate, or 0 if it has no events.
	AggregateVersion(ctx context.Context, instanceID, aggregateType, aggregateID string) (int, error)
}
