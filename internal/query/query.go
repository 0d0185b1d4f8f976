// Package query implements the read-only Query Layer (spec §4.6): thin
// per-entity accessors over the projection tables, every one scoped by
// instance_id. Grounded on the teacher's internal/agency/repository.go
// query style (pgxpool, QueryRow/Query, pgx.ErrNoRows mapped to a typed
// NotFound) but with every write method dropped — the query layer never
// mutates, so unlike Repository it has no Create/Update/Delete side.
package query

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/serbia-gov/iamcore/internal/shared/errors"
)

// Queries is the Query Layer's single entry point, holding the pool
// every per-entity accessor reads from.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// Page is the list/search result shape spec §4.6 names:
// {items, total} from a {limit, offset} request.
type Page[T any] struct {
	Items []T
	Total int
}

// Pagination bounds a list/search call. Limit 0 means "no limit"; a
// negative Limit is passed to Postgres as is and rejected there.
type Pagination struct {
	Limit  int
	Offset int
}

func notFound(code, resource, id string, err error) error {
	if err == pgx.ErrNoRows {
		return apperrors.NotFound(code, resource, id)
	}
	return apperrors.Wrap(err, "query "+resource)
}
