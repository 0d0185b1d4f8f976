//go:build integration

package pgeventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/serbia-gov/iamcore/internal/eventstore"
	"github.com/serbia-gov/iamcore/internal/pgeventstore"
	"github.com/serbia-gov/iamcore/internal/shared/database"
)

// This suite runs against a real Postgres container (spec §6.1's "one
// relational database" assumption can't be exercised with a fake), so
// it's gated behind the integration build tag the way a corpus service
// would isolate a docker-dependent suite from `go test ./...`.

func setupStore(t *testing.T) (*pgeventstore.Store, func()) {
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

	log := zerolog.Nop()
	if err := database.Migrate(ctx, pool, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := pgeventstore.New(pool, log, 3)
	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return store, cleanup
}

func TestStorePushAndQueryRoundTrip(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ev, err := store.Push(ctx, eventstore.Command{
		InstanceID:    "inst1",
		AggregateType: "org",
		AggregateID:   "org1",
		EventType:     "org.added",
		Creator:       "system",
		Owner:         "org1",
		Payload:       []byte(`{"name":"acme"}`),
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if ev.AggregateVersion != 1 {
		t.Fatalf("expected first event to have aggregate_version 1, got %d", ev.AggregateVersion)
	}

	evs, err := store.Query(ctx, eventstore.Filter{InstanceID: "inst1", AggregateTypes: []string{"org"}}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(evs) != 1 || evs[0].EventType != "org.added" {
		t.Fatalf("expected the pushed event back, got %+v", evs)
	}
}

func TestStorePushWithConcurrencyCheckRejectsStaleVersion(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := store.Push(ctx, eventstore.Command{
		InstanceID: "inst1", AggregateType: "org", AggregateID: "org1",
		EventType: "org.added", Creator: "system", Owner: "org1", Payload: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("seed push: %v", err)
	}

	_, err = store.PushWithConcurrencyCheck(ctx, "inst1", "org", "org1", 0, []eventstore.Command{{
		InstanceID: "inst1", AggregateType: "org", AggregateID: "org1",
		EventType: "org.deactivated", Creator: "system", Owner: "org1", Payload: []byte(`{}`),
	}})
	if err == nil {
		t.Fatal("expected a concurrency conflict against a stale expected version")
	}
}

var _ = wait.ForListeningPort
