//go:build integration

package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/serbia-gov/iamcore/internal/query"
	"github.com/serbia-gov/iamcore/internal/shared/database"
)

// Queries holds a concrete *pgxpool.Pool (it mirrors the teacher's
// repository.go, not the Executor-interface style internal/projection
// uses), so exercising it means a real database, same as
// internal/pgeventstore's suite.

func setupQueries(t *testing.T) (*query.Queries, *pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("iamcore_test"),
		tcpostgres.WithUsername("iamcore"),
		tcpostgres.WithPassword("iamcore"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}

	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return query.New(pool), pool, cleanup
}

func TestGetOrgByIDAndListOrgs(t *testing.T) {
	q, pool, cleanup := setupQueries(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, `INSERT INTO organizations (instance_id, org_id, name, state) VALUES ($1,$2,$3,$4)`,
		"inst1", "org1", "Acme Corp", "active")
	if err != nil {
		t.Fatalf("seed org: %v", err)
	}

	org, err := q.GetOrgByID(ctx, "inst1", "org1")
	if err != nil {
		t.Fatalf("GetOrgByID: %v", err)
	}
	if org.Name != "Acme Corp" {
		t.Fatalf("expected name Acme Corp, got %q", org.Name)
	}

	page, err := q.ListOrgs(ctx, "inst1", "Acme", query.Pagination{Limit: 10})
	if err != nil {
		t.Fatalf("ListOrgs: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one matching org, got %+v", page)
	}

	if _, err := q.GetOrgByID(ctx, "inst1", "missing"); err == nil {
		t.Fatal("expected not-found error for missing org")
	}
}

func TestGetUserIDByLoginName(t *testing.T) {
	q, pool, cleanup := setupQueries(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, `INSERT INTO login_names (instance_id, login_name, user_id) VALUES ($1,$2,$3)`,
		"inst1", "alice@acme.test", "user1")
	if err != nil {
		t.Fatalf("seed login_name: %v", err)
	}

	userID, err := q.GetUserIDByLoginName(ctx, "inst1", "alice@acme.test")
	if err != nil {
		t.Fatalf("GetUserIDByLoginName: %v", err)
	}
	if userID != "user1" {
		t.Fatalf("expected user1, got %q", userID)
	}

	if _, err := q.GetUserIDByLoginName(ctx, "inst1", "nobody@acme.test"); err == nil {
		t.Fatal("expected not-found error for unknown login name")
	}
}
