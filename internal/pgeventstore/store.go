// Package pgeventstore implements internal/eventstore.Store on top of a
// single Postgres database (spec §6.1), grounded on the teacher's
// internal/kurrentdb client/subscriber shape (bootstrap + catch-up
// polling loop) re-targeted from EventStoreDB onto Postgres, and on
// go-crablet's pkg/dcb/command.go advisory-lock sequencing for
// per-aggregate serialization.
package pgeventstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
	"github.com/serbia-gov/iamcore/internal/shared/metrics"
)

// Store is the Postgres-backed eventstore.Store.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger

	maxConcurrencyRetries int
}

// New constructs a Store. maxConcurrencyRetries bounds the internal retry
// loop for duplicate-position/version races (spec §4.1 failure semantics);
// it does not retry ConcurrencyConflict, which is always surfaced.
func New(pool *pgxpool.Pool, log zerolog.Logger, maxConcurrencyRetries int) *Store {
	if maxConcurrencyRetries <= 0 {
		maxConcurrencyRetries = 3
	}
	return &Store{pool: pool, log: log, maxConcurrencyRetries: maxConcurrencyRetries}
}

// advisoryLockKey returns the deterministic lock key for an aggregate,
// used with pg_advisory_xact_lock(hashtext(key)) to serialize concurrent
// pushes against the same (instance, type, id) triple.
func advisoryLockKey(instanceID, aggregateType, aggregateID string) string {
	return fmt.Sprintf("agg:%s:%s:%s", instanceID, aggregateType, aggregateID)
}

func (s *Store) Push(ctx context.Context, cmd eventstore.Command) (eventstore.Event, error) {
	events, err := s.PushMany(ctx, []eventstore.Command{cmd})
	if err != nil {
		return eventstore.Event{}, err
	}
	return events[0], nil
}

func (s *Store) PushMany(ctx context.Context, cmds []eventstore.Command) ([]eventstore.Event, error) {
	return s.push(ctx, cmds, nil)
}

func (s *Store) PushWithConcurrencyCheck(ctx context.Context, instanceID, aggregateType, aggregateID string, expectedVersion int, cmds []eventstore.Command) ([]eventstore.Event, error) {
	check := &concurrencyCheck{
		instanceID:    instanceID,
		aggregateType: aggregateType,
		aggregateID:   aggregateID,
		expected:      expectedVersion,
	}
	return s.push(ctx, cmds, check)
}

type concurrencyCheck struct {
	instanceID    string
	aggregateType string
	aggregateID   string
	expected      int
}

// push appends cmds atomically. Locks are acquired in sorted order (one
// per distinct aggregate referenced in the batch) before any row is
// written, matching go-crablet's deadlock-avoidance discipline. Duplicate
// unique-constraint violations (position or aggregate_version races) are
// retried up to maxConcurrencyRetries times by recomputing fresh values;
// exhausting retries surfaces StorageError (spec §4.1).
func (s *Store) push(ctx context.Context, cmds []eventstore.Command, check *concurrencyCheck) ([]eventstore.Event, error) {
	if len(cmds) == 0 {
		return nil, apperrors.InvalidArgument("EVENTSTORE-Push01", "at least one command is required", nil)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxConcurrencyRetries; attempt++ {
		events, err := s.pushOnce(ctx, cmds, check)
		if err == nil {
			return events, nil
		}
		if apperrors.Is(err, apperrors.KindConcurrencyConflict) {
			if check != nil {
				metrics.RecordConcurrencyConflict(check.aggregateType)
			}
			return nil, err
		}
		lastErr = err
		if !isRetryableConstraintViolation(err) {
			return nil, err
		}
	}
	return nil, apperrors.StorageError("EVENTSTORE-Push02", "push", lastErr)
}

func (s *Store) pushOnce(ctx context.Context, cmds []eventstore.Command, check *concurrencyCheck) ([]eventstore.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, apperrors.StorageError("EVENTSTORE-Push03", "begin", err)
	}
	defer tx.Rollback(ctx)

	locks := distinctLockKeys(cmds)
	sort.Strings(locks)
	for _, key := range locks {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return nil, apperrors.StorageError("EVENTSTORE-Push04", "advisory_lock", err)
		}
	}

	currentVersions := make(map[string]int)
	for _, cmd := range cmds {
		key := advisoryLockKey(cmd.InstanceID, cmd.AggregateType, cmd.AggregateID)
		if _, ok := currentVersions[key]; ok {
			continue
		}
		var version int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(aggregate_version), 0) FROM events
			 WHERE instance_id = $1 AND aggregate_type = $2 AND aggregate_id = $3`,
			cmd.InstanceID, cmd.AggregateType, cmd.AggregateID,
		).Scan(&version)
		if err != nil {
			return nil, apperrors.StorageError("EVENTSTORE-Push05", "select_version", err)
		}
		currentVersions[key] = version
	}

	if check != nil {
		key := advisoryLockKey(check.instanceID, check.aggregateType, check.aggregateID)
		actual := currentVersions[key]
		if actual != check.expected {
			return nil, apperrors.NewConcurrencyConflict("EVENTSTORE-Push06", check.expected, actual)
		}
	}

	events := make([]eventstore.Event, len(cmds))
	now := time.Now().UTC()
	for i, cmd := range cmds {
		key := advisoryLockKey(cmd.InstanceID, cmd.AggregateType, cmd.AggregateID)
		currentVersions[key]++
		version := currentVersions[key]

		revision := cmd.Revision
		if revision == 0 {
			revision = 1
		}

		var globalPosition int64
		err := tx.QueryRow(ctx,
			`INSERT INTO events
				(in_tx_order, instance_id, aggregate_type, aggregate_id, aggregate_version,
				 event_type, revision, creator, owner, created_at, payload)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING global_position`,
			i, cmd.InstanceID, cmd.AggregateType, cmd.AggregateID, version,
			cmd.EventType, revision, cmd.Creator, cmd.Owner, now, cmd.Payload,
		).Scan(&globalPosition)
		if err != nil {
			return nil, apperrors.StorageError("EVENTSTORE-Push07", "insert", err)
		}

		events[i] = eventstore.Event{
			InstanceID:       cmd.InstanceID,
			AggregateType:    cmd.AggregateType,
			AggregateID:      cmd.AggregateID,
			AggregateVersion: version,
			EventType:        cmd.EventType,
			Revision:         revision,
			Position:         eventstore.Position{GlobalPosition: globalPosition, InTxOrder: i},
			Creator:          cmd.Creator,
			Owner:            cmd.Owner,
			CreatedAt:        now,
			Payload:          cmd.Payload,
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.StorageError("EVENTSTORE-Push08", "commit", err)
	}
	for _, ev := range events {
		metrics.RecordEventAppended(ev.AggregateType, ev.EventType)
	}
	return events, nil
}

func distinctLockKeys(cmds []eventstore.Command) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, cmd := range cmds {
		key := advisoryLockKey(cmd.InstanceID, cmd.AggregateType, cmd.AggregateID)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// sqlstateSerializationFailure and sqlstateUniqueViolation are the only
// two SQLSTATEs push retries: serializable-isolation races and
// aggregate_version/position uniqueness collisions are both transient
// and resolve themselves on a fresh attempt. Any other error (a broken
// connection, a syntax error, a permissions problem) is not retried
// here — it surfaces as StorageError on the first attempt (spec §4.1).
const (
	sqlstateSerializationFailure = "40001"
	sqlstateUniqueViolation      = "23505"
)

func isRetryableConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlstateSerializationFailure, sqlstateUniqueViolation:
		return true
	default:
		return false
	}
}

func (s *Store) AggregateVersion(ctx context.Context, instanceID, aggregateType, aggregateID string) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(aggregate_version), 0) FROM events
		 WHERE instance_id = $1 AND aggregate_type = $2 AND aggregate_id = $3`,
		instanceID, aggregateType, aggregateID,
	).Scan(&version)
	if err != nil {
		return 0, apperrors.StorageError("EVENTSTORE-Version01", "select_version", err)
	}
	return version, nil
}
