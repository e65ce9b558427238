// Package server exposes the HTTP/JSON API: read models from the
// projection tables, cached prices from Redis, and command submission
// into the engine loop.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	cache "wagerledger/internal/cache/redis"
	"wagerledger/internal/ingestion"
	"wagerledger/internal/observability"
	"wagerledger/internal/query"
)

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Query         *query.Service
	Prices        *cache.PriceCache // nil when Redis is disabled
	CommandChan   chan<- ingestion.RawCommand
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
}

// Server is the HTTP/JSON API server.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds the router and wires middleware. corsOrigins empty means
// allow none beyond same-origin; "*" allows all.
func New(port int, corsOrigins []string, deps *Deps) *Server {
	h := &handlers{
		query:   deps.Query,
		prices:  deps.Prices,
		cmdChan: deps.CommandChan,
		metrics: deps.Metrics,
		log:     observability.NewLogger("server"),
	}

	r := mux.NewRouter()

	if deps.HealthChecker != nil {
		r.HandleFunc("/healthz", deps.HealthChecker.LivenessHandler).Methods(http.MethodGet)
		r.HandleFunc("/readyz", deps.HealthChecker.ReadinessHandler).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.instrument)

	api.HandleFunc("/markets", h.listMarkets).Methods(http.MethodGet)
	api.HandleFunc("/markets/{id}", h.getMarket).Methods(http.MethodGet)
	api.HandleFunc("/markets/{id}/price", h.getMarketPrice).Methods(http.MethodGet)
	api.HandleFunc("/markets/{id}/positions/{user_id}", h.getPosition).Methods(http.MethodGet)

	api.HandleFunc("/tournaments", h.listTournaments).Methods(http.MethodGet)
	api.HandleFunc("/tournaments/{id}", h.getTournament).Methods(http.MethodGet)
	api.HandleFunc("/tournaments/{id}/entries", h.listEntries).Methods(http.MethodGet)

	api.HandleFunc("/users/{id}/positions", h.listUserPositions).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/balance", h.getBalance).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/transfers", h.listTransfers).Methods(http.MethodGet)

	api.HandleFunc("/integrity", h.verifyIntegrity).Methods(http.MethodGet)

	api.HandleFunc("/commands/{type}", h.submitCommand).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      c.Handler(r),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: observability.NewLogger("server"),
	}
}

// Start listens for HTTP requests. Blocks until the server errors or
// is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
