// Package writemodel provides the composable base every aggregate's write
// model embeds. Per spec §9 "Write-model hierarchy", the source's class
// inheritance (WriteModel base + subclasses) is re-architected here as a
// capability set {Reduce(event), Load(store, id)}: Base is a plain struct
// embedded by value, not a base class extended by reference.
package writemodel

import (
	"context"

	"github.com/serbia-gov/iamcore/internal/eventstore"
)

// Model is the capability every command-pipeline write model exposes.
// AggregateType/Reduce are supplied by the concrete aggregate (e.g.
// internal/domain/org.Model); Load is generic.
type Model interface {
	eventstore.Reducer
	AggregateType() string
}

// Base tracks the bookkeeping fields common to every write model: the
// instance/aggregate identity and the sequence (last-seen aggregate
// version). Concrete aggregates embed Base and implement Reduce.
type Base struct {
	InstanceID  string
	AggregateID string

	// Sequence is the aggregate_version of the last event folded in
	// (spec §3.2). Zero means the aggregate has no events yet.
	Sequence int
}

// Observe records that event was folded, advancing Sequence. Concrete
// Reduce implementations call this before (or after) applying
// event-type-specific state changes.
func (b *Base) Observe(event eventstore.Event) {
	b.InstanceID = event.InstanceID
	b.AggregateID = event.AggregateID
	b.Sequence = event.AggregateVersion
}

// Exists reports whether any event has been folded — i.e. whether the
// aggregate has ever been created.
func (b *Base) Exists() bool { return b.Sequence > 0 }

// Load replays every event for (instanceID, aggregateType, aggregateID)
// into model, in version order (spec §4.2). Unknown event types must be
// ignored by model.Reduce for forward compatibility.
func Load(ctx context.Context, store eventstore.Store, instanceID, aggregateType, aggregateID string, model Model) error {
	filter := eventstore.Filter{
		InstanceID:     instanceID,
		AggregateTypes: []string{aggregateType},
		AggregateIDs:   []string{aggregateID},
	}
	return store.FilterToReducer(ctx, filter, model)
}
