// Package policyresolver implements the read side of policy inheritance
// (spec §4.5): for each of the seven policy families, look up the org
// override, fall back to the instance default, fall back to a
// compiled-in built-in default. Grounded on the teacher's
// internal/agency/repository.go query style (pgxpool, QueryRow, pgx.ErrNoRows
// mapped to a typed error) but stateless — a resolver call never mutates
// anything, so unlike Repository it takes no write methods at all.
package policyresolver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
)

// Resolver reads the denormalized policy tables maintained by
// internal/projection/handlers/policy.go. It never writes.
type Resolver struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// lookup runs the three-level fallback chain shared by every family:
// org override -> instance default -> builtin. scan fills fields from
// the row found at whichever level matched; builtin is returned
// untouched if neither table row exists.
func (r *Resolver) lookup(ctx context.Context, table, columns, instanceID, orgID string, scan func(pgx.Row) error) (bool, error) {
	if orgID != "" {
		row := r.pool.QueryRow(ctx, "SELECT "+columns+" FROM "+table+
			" WHERE instance_id = $1 AND organization_id = $2", instanceID, orgID)
		err := scan(row)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.Wrap(err, "query org policy override")
		}
	}

	row := r.pool.QueryRow(ctx, "SELECT "+columns+" FROM "+table+
		" WHERE instance_id = $1 AND organization_id IS NULL AND is_default = TRUE", instanceID)
	err := scan(row)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, apperrors.Wrap(err, "query instance default policy")
	}
	return false, nil
}
