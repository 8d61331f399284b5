// Package api provides HTTP handlers and the main API server logic for QuoteHub.
//
// It exposes RESTful endpoints for creating quote sessions, submitting
// demographic forms for one or more insurance categories, polling loading
// progress, and reading the merged quote buckets. The API integrates the
// orchestrator, provider, store, and scheduler modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/medicarekit/quotehub/internal/orchestrator"
	"github.com/medicarekit/quotehub/internal/provider"
	"github.com/medicarekit/quotehub/internal/scheduler"
	"github.com/medicarekit/quotehub/internal/store"
)

// Default server configuration constants
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultProviderTimeout bounds each outbound quote gateway call.
	DefaultProviderTimeout = 30 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address.
	Addr string
	// ProviderBaseURL is the quote gateway base URL.
	ProviderBaseURL string
	// DBDriver selects the store backend: "sqlite3" or "postgres".
	DBDriver string
	// BucketTTL is how long persisted quote buckets are kept.
	BucketTTL time.Duration
	// SweepSchedule is the cron expression for the stale-bucket sweep.
	SweepSchedule string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithProviderBaseURL sets the quote gateway base URL.
func WithProviderBaseURL(url string) Option {
	return func(o *Opts) { o.ProviderBaseURL = url }
}

// WithDBDriver selects the store backend.
func WithDBDriver(driver string) Option {
	return func(o *Opts) { o.DBDriver = driver }
}

// WithBucketTTL sets the persisted bucket TTL.
func WithBucketTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.BucketTTL = ttl }
}

// WithSweepSchedule sets the sweep cron expression.
func WithSweepSchedule(schedule string) Option {
	return func(o *Opts) { o.SweepSchedule = schedule }
}

// Server routes HTTP requests to per-session orchestrators.
type Server struct {
	st        store.Store
	providers *provider.Registry
	sweeper   *scheduler.Sweeper

	mu       sync.Mutex
	sessions map[string]*orchestrator.Orchestrator
}

// NewServer creates an API server over the given collaborators.
func NewServer(st store.Store, providers *provider.Registry, sweeper *scheduler.Sweeper) *Server {
	return &Server{
		st:        st,
		providers: providers,
		sweeper:   sweeper,
		sessions:  make(map[string]*orchestrator.Orchestrator),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/quotes", s.submitQuotesHandler)
	mux.HandleFunc("GET /sessions/{id}/progress", s.progressHandler)
	mux.HandleFunc("GET /sessions/{id}/quotes", s.quotesHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSessionHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run builds the configured modules and serves the API. It blocks until the
// listener fails.
func Run(storeOpts []store.Option, apiOpts []Option) error {
	cfg := Opts{
		Addr:          DefaultAddr,
		DBDriver:      "sqlite3",
		BucketTTL:     scheduler.DefaultBucketTTL,
		SweepSchedule: scheduler.DefaultSweepSchedule,
	}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := buildStore(cfg.DBDriver, storeOpts)
	if err != nil {
		return fmt.Errorf("failed to build store: %w", err)
	}
	defer st.Close()

	providers := provider.NewRegistry()
	if cfg.ProviderBaseURL == "" {
		return fmt.Errorf("provider base URL not set")
	}
	provider.RegisterHTTPProviders(providers, cfg.ProviderBaseURL, &http.Client{Timeout: DefaultProviderTimeout})

	sweeper, err := scheduler.NewSweeper(st, cfg.BucketTTL, cfg.SweepSchedule)
	if err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}
	defer sweeper.Stop()

	srv := NewServer(st, providers, sweeper)
	slog.Info("QuoteHub API running", "addr", cfg.Addr, "db_driver", cfg.DBDriver)
	return http.ListenAndServe(cfg.Addr, srv.Handler())
}

// buildStore selects the persistence backend. No DSN degrades to the
// in-memory store so a dev instance can run with zero configuration.
func buildStore(driver string, storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Warn("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	switch driver {
	case "postgres":
		return store.NewPostgresStore(storeOpts...)
	case "", "sqlite3":
		return store.NewSQLiteStore(storeOpts...)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// session returns the orchestrator for a session id, creating and hydrating
// one if this is the first request since startup.
func (s *Server) session(id string) *orchestrator.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if orch, ok := s.sessions[id]; ok {
		return orch
	}
	orch := orchestrator.New(id, s.st, s.providers)
	orch.Hydrate()
	s.sessions[id] = orch
	return orch
}

// dropSession removes a session's orchestrator from the routing table.
func (s *Server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
