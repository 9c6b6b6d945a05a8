// Package api provides HTTP handlers and the main API server logic for
// ClarityCore.
//
// It exposes RESTful endpoints for discovery sessions, the question catalog,
// and thin relays to the LLM collaborator.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/withinyouai/claritycore/internal/catalog"
	"github.com/withinyouai/claritycore/internal/flow"
	"github.com/withinyouai/claritycore/internal/genai"
	"github.com/withinyouai/claritycore/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr         string
	SessionLimit int
	CatalogPath  string
	AckTimeout   time.Duration
	GenAIAcks    bool
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSessionLimit sets the free-tier session limit.
func WithSessionLimit(limit int) Option {
	return func(o *Opts) { o.SessionLimit = limit }
}

// WithCatalogPath loads a question catalog override from a YAML file.
func WithCatalogPath(path string) Option {
	return func(o *Opts) { o.CatalogPath = path }
}

// WithGenAIAcks enables LLM-generated acknowledgments between questions,
// bounded by the given timeout. Without it the static pool is used.
func WithGenAIAcks(timeout time.Duration) Option {
	return func(o *Opts) {
		o.GenAIAcks = true
		o.AckTimeout = timeout
	}
}

// Server carries the API dependencies shared by all handlers.
type Server struct {
	addr      string
	st        store.Store
	cat       *catalog.Catalog
	discovery *flow.DiscoveryFlow
	gaClient  genai.ClientInterface
	startedAt time.Time
}

// NewServer builds a server over the given store and LLM client.
// gaClient may be nil; relay endpoints then report the missing configuration.
func NewServer(st store.Store, gaClient genai.ClientInterface, opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog override: %w", err)
		}
		cat = loaded
	}

	var ack flow.AckGenerator = &flow.StaticAckGenerator{}
	if cfg.GenAIAcks && gaClient != nil {
		ack = flow.NewGenAIAckGenerator(gaClient, cfg.AckTimeout)
	}

	stateManager := flow.NewStoreBasedStateManager(st)
	gate := flow.NewSessionGate(st, cfg.SessionLimit)
	discovery := flow.NewDiscoveryFlow(stateManager, gate, cat, gaClient, ack, st)

	return &Server{
		addr:      cfg.Addr,
		st:        st,
		cat:       cat,
		discovery: discovery,
		gaClient:  gaClient,
		startedAt: time.Now(),
	}, nil
}

// Routes returns the served mux. Exposed for tests.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/questions", s.questionsHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/clarity-summary", s.claritySummaryHandler)
	mux.HandleFunc("/discovery/sessions", s.discoverySessionsHandler)
	mux.HandleFunc("/discovery/sessions/", s.discoverySessionsHandler)
	return mux
}

// ListenAndServe starts the HTTP server and blocks until it exits.
func (s *Server) ListenAndServe() error {
	slog.Info("Server.ListenAndServe: API server starting", "addr", s.addr, "questions", s.cat.Len())
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// Run wires the store, LLM client, and server from option slices and serves
// until the listener fails. The store backend is selected from the DSN.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}

	var st store.Store
	var err error
	switch store.DetectDSNType(storeCfg.DSN) {
	case "postgres":
		slog.Info("api.Run: using Postgres store")
		st, err = store.NewPostgresStore(storeOpts...)
	default:
		slog.Info("api.Run: using SQLite store")
		st, err = store.NewSQLiteStore(storeOpts...)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	var gaClient genai.ClientInterface
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("api.Run: LLM client unavailable, relay and report endpoints degraded", "error", err)
	} else {
		gaClient = client
	}

	srv, err := NewServer(st, gaClient, apiOpts...)
	if err != nil {
		return err
	}
	return srv.ListenAndServe()
}
