// Package api exposes the stream ledger over HTTP. Callers authenticate
// by signing requests with their Stellar account key; the verified
// account becomes the caller the engine authorizes against.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/orbit"
	"github.com/xraph/orbit/auth"
	"github.com/xraph/orbit/types"
)

// DefaultDecimals is the precision amounts are rendered with when none is
// configured (Stellar stroops).
const DefaultDecimals uint32 = 7

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	handler    http.Handler
	engine     *orbit.Engine
	verifier   *auth.SignatureVerifier
	validate   *validator.Validate
	logger     *slog.Logger
	decimals   uint32
	addr       string

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	requests   *prometheus.CounterVec
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address (default ":8080").
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithDecimals sets the precision amounts are parsed and rendered with.
func WithDecimals(d uint32) Option {
	return func(s *Server) { s.decimals = d }
}

// WithVerifier sets the signature verifier.
func WithVerifier(v *auth.SignatureVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry serves /metrics from reg and registers the request
// counter with it instead of the process-wide default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registerer = reg
		s.gatherer = reg
	}
}

// NewServer creates a Server for engine.
func NewServer(engine *orbit.Engine, opts ...Option) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		engine:     engine,
		logger:     engine.Logger(),
		decimals:   DefaultDecimals,
		addr:       ":8080",
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verifier == nil {
		s.verifier = auth.NewSignatureVerifier(
			auth.WithVerifierClock(engine.Clock()),
			auth.WithVerifierLogger(s.logger),
		)
	}

	s.validate = validator.New()
	_ = s.validate.RegisterValidation("address", func(fl validator.FieldLevel) bool { //nolint:errcheck // tag name is static
		return types.Address(fl.Field().String()).Validate() == nil
	})

	s.requests = registerCounter(s.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orbit",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served by the orbit api, by status code and method.",
	}, []string{"code", "method"}))

	s.registerRoutes()

	s.handler = promhttp.InstrumentHandlerCounter(s.requests, s.verifier.Middleware(s.mux))
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// registerCounter registers c, reusing an identical collector that is
// already registered.
func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /config", s.handleConfig)

	// Stream endpoints
	s.mux.HandleFunc("POST /streams", s.handleCreateStream)
	s.mux.HandleFunc("GET /streams/{id}", s.handleGetStream)
	s.mux.HandleFunc("GET /streams/{id}/withdrawable", s.handleWithdrawable)
	s.mux.HandleFunc("POST /streams/{id}/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("POST /streams/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("POST /streams/{id}/extend", s.handleExtend)
	s.mux.HandleFunc("POST /streams/{id}/auto-renew", s.handleAutoRenew)
	s.mux.HandleFunc("POST /streams/{id}/renew", s.handleRenew)
	s.mux.HandleFunc("POST /streams/{id}/terminate", s.handleTerminate)

	// Participant endpoints
	s.mux.HandleFunc("GET /subscribers/{addr}/streams", s.handleSubscriberStreams)
	s.mux.HandleFunc("GET /creators/{addr}/streams", s.handleCreatorStreams)
	s.mux.HandleFunc("GET /creators/{addr}/accrued", s.handleAccrued)
	s.mux.HandleFunc("GET /creators/{addr}/active-count", s.handleActiveCount)
	s.mux.HandleFunc("POST /creators/{addr}/withdraw-all", s.handleWithdrawAll)
	s.mux.HandleFunc("GET /pairs/{sub}/{creator}/active", s.handlePairActive)
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start starts the HTTP server in a goroutine and returns immediately.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("api server starting", "addr", s.addr)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("api server shutting down")
	return s.httpServer.Shutdown(ctx)
}
