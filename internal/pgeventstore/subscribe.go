package pgeventstore

import (
	"context"
	"time"

	"github.com/serbia-gov/iamcore/internal/eventstore"
)

// pollSubscription is a best-effort eventstore.Subscription backed by
// repeated Query calls, shaped after the teacher's internal/kurrentdb
// catch-up subscription loop (connect once, then repeatedly fetch the
// next batch past the last-seen position) but without a persistent
// broker — Postgres has no native append-only stream API, so polling is
// the store's subscription primitive (spec §4.1 "fallback to polling is
// acceptable").
type pollSubscription struct {
	events chan eventstore.Event
	cancel context.CancelFunc
	errCh  chan error
	err    error
}

func (p *pollSubscription) Events() <-chan eventstore.Event { return p.events }

func (p *pollSubscription) Err() error {
	select {
	case err := <-p.errCh:
		p.err = err
	default:
	}
	return p.err
}

func (p *pollSubscription) Close() { p.cancel() }

// Subscribe starts a background poller. The default interval matches the
// projection engine's own poll_interval so a subscriber never does more
// work than the engine's batch loop would anyway.
func (s *Store) Subscribe(ctx context.Context, filter eventstore.Filter) (eventstore.Subscription, error) {
	return s.subscribeWithInterval(ctx, filter, 500*time.Millisecond)
}

func (s *Store) subscribeWithInterval(ctx context.Context, filter eventstore.Filter, interval time.Duration) (eventstore.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &pollSubscription{
		events: make(chan eventstore.Event, 64),
		errCh:  make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		defer close(sub.events)
		cursor := filter.PositionAfter
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}

			f := filter
			f.PositionAfter = cursor
			events, err := s.Query(subCtx, f, 500)
			if err != nil {
				select {
				case sub.errCh <- err:
				default:
				}
				return
			}
			for _, e := range events {
				select {
				case sub.events <- e:
					cursor = e.Position
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}
