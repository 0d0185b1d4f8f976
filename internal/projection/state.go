package projection

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serbia-gov/iamcore/internal/eventstore"
)

// State is one projection's cursor and health bookkeeping row (spec
// §3.4 / §4.4.3), backed by the projection_states table.
type State struct {
	Name       string
	Position   eventstore.Position
	Status     string // running | stopped | error
	ErrorCount int
	LastError  string
}

const (
	StatusStopped = "stopped"
	StatusRunning = "running"
	StatusError   = "error"
)

func loadState(ctx context.Context, pool *pgxpool.Pool, name string) (State, error) {
	_, err := pool.Exec(ctx, `
		INSERT INTO projection_states (name, status)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`, name, StatusStopped)
	if err != nil {
		return State{}, err
	}

	var s State
	var globalPos int64
	var inTx int
	err = pool.QueryRow(ctx, `
		SELECT name, current_position, current_in_tx_order, status, error_count, last_error
		FROM projection_states WHERE name = $1`, name).
		Scan(&s.Name, &globalPos, &inTx, &s.Status, &s.ErrorCount, &s.LastError)
	if err != nil {
		return State{}, err
	}
	s.Position = eventstore.Position{GlobalPosition: globalPos, InTxOrder: inTx}
	return s, nil
}

// advanceState commits a successfully-applied event's cursor position
// and resets error_count to 0 (spec §4.4.3: "Successful event resets
// error_count to 0" — the counter tracks consecutive failures, not a
// lifetime total, so an intermittently-failing projection never trips
// MaxErrors on unrelated, non-consecutive failures).
func advanceState(ctx context.Context, db Executor, name string, pos eventstore.Position) error {
	_, err := db.Exec(ctx, `
		UPDATE projection_states
		SET current_position = $2, current_in_tx_order = $3, status = $4,
		    error_count = 0, last_processed_at = NOW()
		WHERE name = $1`, name, pos.GlobalPosition, pos.InTxOrder, StatusRunning)
	return err
}

// recordFailure appends a failed_events row and increments the
// projection's error_count, returning the updated count so the caller
// can compare it against the max-errors threshold.
func recordFailure(ctx context.Context, pool *pgxpool.Pool, name string, ev eventstore.Event, cause error) (int, error) {
	_, err := pool.Exec(ctx, `
		INSERT INTO failed_events (projection_name, instance_id, aggregate_id, event_type, position, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		name, ev.InstanceID, ev.AggregateID, ev.EventType, ev.Position.GlobalPosition, cause.Error())
	if err != nil {
		return 0, err
	}

	var count int
	err = pool.QueryRow(ctx, `
		UPDATE projection_states
		SET error_count = error_count + 1, last_error = $2
		WHERE name = $1
		RETURNING error_count`, name, cause.Error()).Scan(&count)
	return count, err
}

func setStatus(ctx context.Context, pool *pgxpool.Pool, name, status string) error {
	_, err := pool.Exec(ctx, `UPDATE projection_states SET status = $2 WHERE name = $1`, name, status)
	return err
}

// Rebuild truncates a handler's table(s) and resets its cursor to zero
// so the next poll replays the entire event stream (spec §4.4
// "rebuild(name)").
func Rebuild(ctx context.Context, pool *pgxpool.Pool, h Handler) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := h.Reset(ctx, tx); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE projection_states
		SET current_position = 0, current_in_tx_order = 0, status = $2, error_count = 0, last_error = ''
		WHERE name = $1`, h.Name(), StatusStopped)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
