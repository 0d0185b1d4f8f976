package command

import (
	"context"
	"sort"
	"sync"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
)

// memStore is a minimal in-memory eventstore.Store used only by this
// package's tests, so command handlers can be exercised without a
// Postgres instance. It implements just enough of the Store contract
// for Push/PushMany/FilterToReducer/AggregateVersion to behave
// correctly; Subscribe is unused by any command and returns a closed
// subscription.
type memStore struct {
	mu     sync.Mutex
	events []eventstore.Event
}

func newMemStore() *memStore { return &memStore{} }

func (s *memStore) versionLocked(instanceID, aggregateType, aggregateID string) int {
	v := 0
	for _, e := range s.events {
		if e.InstanceID == instanceID && e.AggregateType == aggregateType && e.AggregateID == aggregateID && e.AggregateVersion > v {
			v = e.AggregateVersion
		}
	}
	return v
}

func (s *memStore) Push(ctx context.Context, cmd eventstore.Command) (eventstore.Event, error) {
	evs, err := s.PushMany(ctx, []eventstore.Command{cmd})
	if err != nil {
		return eventstore.Event{}, err
	}
	return evs[0], nil
}

func (s *memStore) PushMany(ctx context.Context, cmds []eventstore.Command) ([]eventstore.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := map[string]int{}
	out := make([]eventstore.Event, 0, len(cmds))
	pos := int64(len(s.events))
	for i, cmd := range cmds {
		key := cmd.InstanceID + "/" + cmd.AggregateType + "/" + cmd.AggregateID
		if _, ok := versions[key]; !ok {
			versions[key] = s.versionLocked(cmd.InstanceID, cmd.AggregateType, cmd.AggregateID)
		}
		versions[key]++
		pos++
		ev := eventstore.Event{
			InstanceID:       cmd.InstanceID,
			AggregateType:    cmd.AggregateType,
			AggregateID:      cmd.AggregateID,
			AggregateVersion: versions[key],
			EventType:        cmd.EventType,
			Position:         eventstore.Position{GlobalPosition: pos, InTxOrder: i},
			Creator:          cmd.Creator,
			Owner:            cmd.Owner,
			Payload:          cmd.Payload,
		}
		out = append(out, ev)
	}
	s.events = append(s.events, out...)
	return out, nil
}

func (s *memStore) PushWithConcurrencyCheck(ctx context.Context, instanceID, aggregateType, aggregateID string, expectedVersion int, cmds []eventstore.Command) ([]eventstore.Event, error) {
	s.mu.Lock()
	current := s.versionLocked(instanceID, aggregateType, aggregateID)
	s.mu.Unlock()
	if current != expectedVersion {
		return nil, apperrors.NewConcurrencyConflict("EVENTSTORE-Conflict01", expectedVersion, current)
	}
	return s.PushMany(ctx, cmds)
}

func (s *memStore) matches(e eventstore.Event, filter eventstore.Filter) bool {
	if filter.InstanceID != "" && e.InstanceID != filter.InstanceID {
		return false
	}
	if len(filter.AggregateTypes) > 0 && !contains(filter.AggregateTypes, e.AggregateType) {
		return false
	}
	if len(filter.AggregateIDs) > 0 && !contains(filter.AggregateIDs, e.AggregateID) {
		return false
	}
	if filter.PositionAfter != eventstore.Zero && !filter.PositionAfter.Less(e.Position) {
		return false
	}
	return true
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func (s *memStore) Query(ctx context.Context, filter eventstore.Filter, limit int) ([]eventstore.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []eventstore.Event
	for _, e := range s.events {
		if s.matches(e, filter) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position.Less(out[j].Position) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) FilterToReducer(ctx context.Context, filter eventstore.Filter, reducer eventstore.Reducer) error {
	evs, err := s.Query(ctx, filter, 0)
	if err != nil {
		return err
	}
	for _, e := range evs {
		if err := reducer.Reduce(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) LatestPosition(ctx context.Context) (eventstore.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return eventstore.Zero, nil
	}
	return s.events[len(s.events)-1].Position, nil
}

func (s *memStore) LatestEvent(ctx context.Context, filter eventstore.Filter) (eventstore.Event, bool, error) {
	evs, err := s.Query(ctx, filter, 0)
	if err != nil || len(evs) == 0 {
		return eventstore.Event{}, false, err
	}
	return evs[len(evs)-1], true, nil
}

type closedSubscription struct{ ch chan eventstore.Event }

func (c closedSubscription) Events() <-chan eventstore.Event { return c.ch }
func (c closedSubscription) Err() error                      { return nil }
func (c closedSubscription) Close()                          {}

func (s *memStore) Subscribe(ctx context.Context, filter eventstore.Filter) (eventstore.Subscription, error) {
	ch := make(chan eventstore.Event)
	close(ch)
	return closedSubscription{ch: ch}, nil
}

func (s *memStore) DistinctInstanceIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, e := range s.events {
		if !seen[e.InstanceID] {
			seen[e.InstanceID] = true
			out = append(out, e.InstanceID)
		}
	}
	return out, nil
}

func (s *memStore) AggregateVersion(ctx context.Context, instanceID, aggregateType, aggregateID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionLocked(instanceID, aggregateType, aggregateID), nil
}
