package pgeventstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
)

// buildFilterSQL renders filter as a WHERE clause (without the leading
// "WHERE") plus its positional args, starting arg numbering at argOffset+1.
func buildFilterSQL(filter eventstore.Filter, argOffset int) (string, []any) {
	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argOffset+len(args))
	}

	if filter.InstanceID != "" {
		clauses = append(clauses, "instance_id = "+arg(filter.InstanceID))
	}
	if len(filter.AggregateTypes) > 0 {
		clauses = append(clauses, "aggregate_type = ANY("+arg(filter.AggregateTypes)+")")
	}
	if len(filter.AggregateIDs) > 0 {
		clauses = append(clauses, "aggregate_id = ANY("+arg(filter.AggregateIDs)+")")
	}
	if len(filter.EventTypes) > 0 {
		clauses = append(clauses, "event_type = ANY("+arg(filter.EventTypes)+")")
	}
	if filter.Owner != "" {
		clauses = append(clauses, "owner = "+arg(filter.Owner))
	}
	if filter.Creator != "" {
		clauses = append(clauses, "creator = "+arg(filter.Creator))
	}
	if !filter.CreatedAfter.IsZero() {
		clauses = append(clauses, "created_at >= "+arg(filter.CreatedAfter))
	}
	if !filter.CreatedBefore.IsZero() {
		clauses = append(clauses, "created_at < "+arg(filter.CreatedBefore))
	}
	if filter.PositionAfter != eventstore.Zero {
		clauses = append(clauses,
			"(global_position > "+arg(filter.PositionAfter.GlobalPosition)+
				" OR (global_position = "+fmt.Sprintf("$%d", argOffset+len(args))+
				" AND in_tx_order > "+arg(filter.PositionAfter.InTxOrder)+"))")
	}

	if len(clauses) == 0 {
		return "TRUE", args
	}
	return strings.Join(clauses, " AND "), args
}

func scanEvent(rows pgx.Row) (eventstore.Event, error) {
	var e eventstore.Event
	var createdAt time.Time
	err := rows.Scan(
		&e.InstanceID, &e.AggregateType, &e.AggregateID, &e.AggregateVersion,
		&e.EventType, &e.Revision, &e.Position.GlobalPosition, &e.Position.InTxOrder,
		&e.Creator, &e.Owner, &createdAt, &e.Payload,
	)
	e.CreatedAt = createdAt
	return e, err
}

const eventColumns = `instance_id, aggregate_type, aggregate_id, aggregate_version,
	event_type, revision, global_position, in_tx_order, creator, owner, created_at, payload`

func (s *Store) Query(ctx context.Context, filter eventstore.Filter, limit int) ([]eventstore.Event, error) {
	where, args := buildFilterSQL(filter, 0)
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY global_position ASC, in_tx_order ASC`, eventColumns, where)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StorageError("EVENTSTORE-Query01", "query", err)
	}
	defer rows.Close()

	var events []eventstore.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.StorageError("EVENTSTORE-Query02", "scan", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError("EVENTSTORE-Query03", "rows", err)
	}
	return events, nil
}

// FilterToReducer streams every matching event, in position order, into
// reducer. Used by writemodel.Load for aggregate rehydration (spec §4.2).
func (s *Store) FilterToReducer(ctx context.Context, filter eventstore.Filter, reducer eventstore.Reducer) error {
	where, args := buildFilterSQL(filter, 0)
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY global_position ASC, in_tx_order ASC`, eventColumns, where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return apperrors.StorageError("EVENTSTORE-Reduce01", "query", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return apperrors.StorageError("EVENTSTORE-Reduce02", "scan", err)
		}
		if err := reducer.Reduce(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return apperrors.StorageError("EVENTSTORE-Reduce03", "rows", err)
	}
	return nil
}

func (s *Store) LatestPosition(ctx context.Context) (eventstore.Position, error) {
	var pos eventstore.Position
	var global *int64
	var inTx *int
	err := s.pool.QueryRow(ctx,
		`SELECT global_position, in_tx_order FROM events ORDER BY global_position DESC, in_tx_order DESC LIMIT 1`,
	).Scan(&global, &inTx)
	if err == pgx.ErrNoRows {
		return eventstore.Zero, nil
	}
	if err != nil {
		return pos, apperrors.StorageError("EVENTSTORE-Latest01", "select", err)
	}
	if global != nil {
		pos.GlobalPosition = *global
	}
	if inTx != nil {
		pos.InTxOrder = *inTx
	}
	return pos, nil
}

func (s *Store) LatestEvent(ctx context.Context, filter eventstore.Filter) (eventstore.Event, bool, error) {
	where, args := buildFilterSQL(filter, 0)
	query := fmt.Sprintf(`SELECT %s FROM events WHERE %s ORDER BY global_position DESC, in_tx_order DESC LIMIT 1`, eventColumns, where)

	row := s.pool.QueryRow(ctx, query, args...)
	e, err := scanEvent(row)
	if err == pgx.ErrNoRows {
		return eventstore.Event{}, false, nil
	}
	if err != nil {
		return eventstore.Event{}, false, apperrors.StorageError("EVENTSTORE-Latest02", "select", err)
	}
	return e, true, nil
}

func (s *Store) DistinctInstanceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT instance_id FROM events ORDER BY instance_id`)
	if err != nil {
		return nil, apperrors.StorageError("EVENTSTORE-Distinct01", "query", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.StorageError("EVENTSTORE-Distinct02", "scan", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StorageError("EVENTSTORE-Distinct03", "rows", err)
	}
	return ids, nil
}
