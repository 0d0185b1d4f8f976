package projection

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/shared/logging"
	"github.com/serbia-gov/iamcore/internal/shared/metrics"
)

// MaxErrors is the consecutive-failure threshold after which a
// projection transitions to the error status and stops consuming new
// events until an operator calls Rebuild (spec §4.4 "max_errors=10").
const MaxErrors = 10

// Engine schedules every registered handler's catch-up polling loop.
// One goroutine per handler lets a slow or erroring projection never
// hold up the others — the same independence the teacher's audit
// subscriber has as the platform's only consumer, generalized here to
// many concurrent consumers of the same stream.
type Engine struct {
	Store        eventstore.Store
	Pool         *pgxpool.Pool
	Registry     *Registry
	PollInterval time.Duration
	BatchSize    int
	Log          zerolog.Logger
}

func NewEngine(store eventstore.Store, pool *pgxpool.Pool, registry *Registry, pollInterval time.Duration, batchSize int, log zerolog.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Engine{
		Store:        store,
		Pool:         pool,
		Registry:     registry,
		PollInterval: pollInterval,
		BatchSize:    batchSize,
		Log:          logging.WithComponent(log, "projection"),
	}
}

// Run starts every handler's polling loop in dependency order and
// blocks until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	order, err := e.Registry.StartOrder()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, h := range order {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			e.runHandler(ctx, h)
		}(h)
	}
	wg.Wait()
	return nil
}

func (e *Engine) runHandler(ctx context.Context, h Handler) {
	log := e.Log.With().Str("projection", h.Name()).Logger()
	cfg := e.Registry.Config(h.Name())

	if cfg.RebuildOnStart {
		if err := Rebuild(ctx, e.Pool, h); err != nil {
			log.Error().Err(err).Msg("projection rebuild_on_start failed")
			return
		}
	}

	pollInterval := e.PollInterval
	if cfg.PollInterval > 0 {
		pollInterval = cfg.PollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.poll(ctx, h, cfg); err != nil {
				log.Error().Err(err).Msg("projection poll failed")
			}
		}
	}
}

// poll loads the handler's cursor, fetches the next batch of events
// after it, and applies every event the handler is interested in, each
// inside its own transaction so a handler failure rolls back only that
// one event's effect and cursor advance. When cfg.EnableLocking is set,
// the whole batch runs under a session-scoped named advisory lock
// keyed by the handler's name, so only one replica processes a given
// projection's batch at a time (spec §4.4.1/§4.4.2 step 1).
func (e *Engine) poll(ctx context.Context, h Handler, cfg HandlerConfig) error {
	if cfg.EnableLocking {
		return e.withHandlerLock(ctx, h.Name(), func() error {
			return e.pollBatch(ctx, h, cfg)
		})
	}
	return e.pollBatch(ctx, h, cfg)
}

func (e *Engine) pollBatch(ctx context.Context, h Handler, cfg HandlerConfig) error {
	state, err := loadState(ctx, e.Pool, h.Name())
	if err != nil {
		return err
	}
	if state.Status == StatusError {
		return nil
	}

	batchSize := e.BatchSize
	if cfg.BatchSize > 0 {
		batchSize = cfg.BatchSize
	}

	filter := eventstore.Filter{PositionAfter: state.Position}
	if ef, ok := h.(EventFilterer); ok {
		filter.EventTypes = ef.EventTypes()
		filter.AggregateTypes = ef.AggregateTypes()
	}

	evs, err := e.Store.Query(ctx, filter, batchSize)
	if err != nil {
		return err
	}

	for _, ev := range evs {
		if err := e.processOne(ctx, h, ev); err != nil {
			metrics.RecordProjectionError(h.Name())
			count, recErr := recordFailure(ctx, e.Pool, h.Name(), ev, err)
			if recErr != nil {
				return recErr
			}
			if count >= MaxErrors {
				metrics.RecordProjectionStatus(h.Name(), true)
				return setStatus(ctx, e.Pool, h.Name(), StatusError)
			}
			// Below threshold: stop this batch here so events stay in
			// order (a later event never applies before an earlier one
			// that's still failing), but don't halt the projection yet.
			return nil
		}
		metrics.RecordProjectionLag(h.Name(), time.Since(ev.CreatedAt))
	}
	return nil
}

// withHandlerLock acquires a dedicated connection and holds
// pg_advisory_lock(hashtext(name)) for the duration of fn, matching
// Postgres's requirement that session-scoped advisory locks be
// released on the same connection that took them (unlike the
// transaction-scoped pg_advisory_xact_lock pgeventstore.Store uses for
// per-aggregate serialization).
func (e *Engine) withHandlerLock(ctx context.Context, name string, fn func() error) error {
	conn, err := e.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", name); err != nil {
		return err
	}
	defer conn.Exec(ctx, "SELECT pg_advisory_unlock(hashtext($1))", name)

	return fn()
}

func (e *Engine) processOne(ctx context.Context, h Handler, ev eventstore.Event) error {
	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if h.Interested(ev.EventType) {
		if err := h.Handle(ctx, tx, ev); err != nil {
			return err
		}
	}
	if err := advanceState(ctx, tx, h.Name(), ev.Position); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
