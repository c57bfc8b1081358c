package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/oakmont/folio/internal/database"
	"github.com/oakmont/folio/internal/modules/alerts"
	"github.com/oakmont/folio/internal/modules/charts"
	"github.com/oakmont/folio/internal/modules/clients"
	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/importer"
	"github.com/oakmont/folio/internal/modules/reports"
)

// Handlers bundles the per-module HTTP handlers the server mounts.
type Handlers struct {
	Clients  *clients.Handler
	Engine   *engine.Handler
	Reports  *reports.Handler
	Importer *importer.Handler
	Charts   *charts.Handler
	Alerts   *alerts.Handler
}

// Config holds server configuration
type Config struct {
	Port     int
	Log      zerolog.Logger
	DB       *database.DB
	Handlers Handlers
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	db       *database.DB
	handlers Handlers
	started  time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		db:       cfg.DB,
		handlers: cfg.Handlers,
		started:  time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// System
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		// Clients and their event streams
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.handlers.Clients.HandleList)
			r.Post("/", s.handlers.Clients.HandleCreate)

			r.Route("/{client}", func(r chi.Router) {
				r.Get("/", s.handlers.Clients.HandleGet)
				r.Delete("/", s.handlers.Clients.HandleDelete)

				r.Get("/transactions", s.handlers.Engine.HandleListTransactions)
				r.Post("/transactions", s.handlers.Engine.HandleRecordTrade)

				r.Get("/cash", s.handlers.Engine.HandleListCash)
				r.Post("/cash", s.handlers.Engine.HandleRecordCash)
				r.Get("/cash/balance", s.handlers.Engine.HandleBalance)

				r.Get("/holdings", s.handlers.Reports.HandleHoldings)
				r.Get("/ledger", s.handlers.Reports.HandleLedger)
				r.Get("/realized", s.handlers.Reports.HandleRealized)
				r.Get("/summary", s.handlers.Reports.HandleSummary)
				r.Get("/performance", s.handlers.Reports.HandlePerformance)

				r.Post("/import", s.handlers.Importer.HandleImport)

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", s.handlers.Alerts.HandleList)
				r.Post("/", s.handlers.Alerts.HandleCreate)
				r.Delete("/{alert}", s.handlers.Alerts.HandleDelete)
			})
			})
		})

		// Price charts
		r.Route("/charts", func(r chi.Router) {
			r.Get("/{symbol}", s.handlers.Charts.HandlePriceChart)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
