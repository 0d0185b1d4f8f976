// Command iamcore boots the multi-tenant IAM core: Postgres pool and
// migrations, the event store, the command pipeline, the projection
// engine with every registered handler, the policy resolver, the query
// layer, and a thin admin/health/metrics HTTP surface (spec.md's
// Non-goals exclude a business REST API — commands and queries are a
// Go library surface, not HTTP endpoints here).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/serbia-gov/iamcore/internal/authz"
	"github.com/serbia-gov/iamcore/internal/clock"
	"github.com/serbia-gov/iamcore/internal/command"
	"github.com/serbia-gov/iamcore/internal/idgen"
	"github.com/serbia-gov/iamcore/internal/jwtauth"
	"github.com/serbia-gov/iamcore/internal/notification"
	"github.com/serbia-gov/iamcore/internal/passwordhash"
	"github.com/serbia-gov/iamcore/internal/pgeventstore"
	"github.com/serbia-gov/iamcore/internal/policyresolver"
	"github.com/serbia-gov/iamcore/internal/projection"
	"github.com/serbia-gov/iamcore/internal/projection/handlers"
	"github.com/serbia-gov/iamcore/internal/query"
	"github.com/serbia-gov/iamcore/internal/shared/config"
	"github.com/serbia-gov/iamcore/internal/shared/database"
	"github.com/serbia-gov/iamcore/internal/shared/logging"
	"github.com/serbia-gov/iamcore/internal/shared/metrics"
	secmiddleware "github.com/serbia-gov/iamcore/internal/shared/middleware"
	"github.com/serbia-gov/iamcore/internal/shared/types"
)

// correlationIDHeader carries a cross-component trace ID (distinct from
// chi's short per-request ID). The middleware below takes it from the
// request, or mints one, and echoes it on the response header; it does
// not place it in the request context.
const correlationIDHeader = "X-Correlation-ID"

func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationIDHeader)
		if id == "" {
			id = types.NewCorrelationID()
		}
		w.Header().Set(correlationIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// App holds every long-lived dependency the core wires together, kept
// around past main's setup section only so the admin HTTP handlers
// below can close over the pieces they report on.
type App struct {
	Config          *config.Config
	DB              *database.DB
	Commands        *command.Commands
	Policies        *policyresolver.Resolver
	Queries         *query.Queries
	Registry        *projection.Registry
	MachineVerifier *jwtauth.MachineVerifier
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool, log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	store := pgeventstore.New(db.Pool, log, cfg.EventStore.MaxConcurrencyRetries)

	authzChecker := authz.Checker(authz.AllowAll{})
	if cfg.Authz.Enabled {
		authzChecker = authz.NewOPAChecker(cfg.Authz.BaseURL, cfg.Authz.Policy, true)
	}

	cmds := command.New(
		store,
		idgen.New(),
		clock.System{},
		authzChecker,
		passwordhash.New(),
		notification.NewLoggingSender(log),
		log,
	)

	policies := policyresolver.New(db.Pool)
	queries := query.New(db.Pool)

	registry := projection.NewRegistry()
	for _, h := range handlers.NewPolicyHandlers() {
		registry.Register(h)
	}
	registry.Register(handlers.NewOrgHandler())
	registry.Register(handlers.NewUserHandler())
	registry.Register(handlers.NewTextHandler())
	registry.Register(handlers.NewAuditHandler())

	machineVerifier := jwtauth.NewMachineVerifier(jwtauth.NewQueryKeyResolver(queries))

	engine := projection.NewEngine(store, db.Pool, registry, cfg.EventStore.PollInterval, cfg.EventStore.DefaultBatchSize, log)

	engineCtx, cancelEngine := context.WithCancel(ctx)
	defer cancelEngine()
	go func() {
		if err := engine.Run(engineCtx); err != nil {
			log.Error().Err(err).Msg("projection engine stopped")
		}
	}()

	app := &App{
		Config:          cfg,
		DB:              db,
		Commands:        cmds,
		Policies:        policies,
		Queries:         queries,
		Registry:        registry,
		MachineVerifier: machineVerifier,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(correlationID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))

	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	r.Route("/admin", func(r chi.Router) {
		r.Use(jwtauth.Middleware(cfg.Auth))
		r.Use(jwtauth.RequireRole("ADMIN"))
		r.Get("/projections", listProjectionsHandler(app))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		<-quit
		log.Info().Msg("shutting down")
		cancelEngine()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	log.Info().
		Int("port", cfg.Server.Port).
		Str("env", cfg.Server.Env).
		Bool("authz_enabled", cfg.Authz.Enabled).
		Msg("iamcore started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	<-done
	log.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "iamcore",
		"version": "0.1.0",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		status := http.StatusOK
		for _, v := range checks {
			if v != "ready" {
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, status, map[string]any{"checks": checks})
	}
}

// listProjectionsHandler lists the names of every registered projection.
// It does not report cursor positions or status.
func listProjectionsHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := make([]string, 0)
		for _, h := range app.Registry.All() {
			names = append(names, h.Name())
		}
		writeJSON(w, http.StatusOK, map[string]any{"projections": names})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
