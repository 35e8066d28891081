// Package server exposes the rebase policy over HTTP.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rebasechain/core/events"
	"rebasechain/native/policy"
	"rebasechain/observability/metrics"
	"rebasechain/services/rebased/history"
)

// PolicyEngine is the subset of the rebase engine served over HTTP.
type PolicyEngine interface {
	State() *policy.State
	InRebaseWindow() bool
	GlobalStateView() (uint64, *big.Int, error)
	Rebase(ctx context.Context, caller ethcommon.Address) (policy.RebaseResult, error)
	SetOrchestrator(caller, orchestrator ethcommon.Address) error
	SetInflationRate(caller ethcommon.Address, rate uint64) error
	SetRebaseTimingParameters(caller ethcommon.Address, intervalSec, offsetSec, lengthSec uint64) error
}

// History serves recorded rebases and supply changes.
type History interface {
	ListRebases(ctx context.Context, limit int) ([]history.Rebase, error)
	GetRebase(ctx context.Context, epoch uint64) (history.Rebase, error)
	ListSupplyChanges(ctx context.Context, limit int) ([]history.SupplyChange, error)
	ExportParquet(ctx context.Context, w io.Writer, limit int) (int, error)
}

// Ledger is the read side of the token ledger.
type Ledger interface {
	Token() string
	Snapshot() (uint64, *big.Int, error)
}

// Stream hands out event subscriptions for websocket clients.
type Stream interface {
	Subscribe() (<-chan events.Event, func())
}

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress     string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the policy read, rebase and admin endpoints.
type Server struct {
	cfg     Config
	engine  PolicyEngine
	history History
	stream  Stream
	ledger  Ledger
	auth    *Authenticator
	limiter *RateLimiter
	nowFn   func() time.Time
}

// New constructs a server. hist, stream and book are optional.
func New(cfg Config, engine PolicyEngine, hist History, stream Stream, book Ledger, auth *Authenticator, limiter *RateLimiter) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("policy engine required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		history: hist,
		stream:  stream,
		ledger:  book,
		auth:    auth,
		limiter: limiter,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Handler builds the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.Middleware)

		v1.Get("/policy", s.handlePolicy)
		v1.Get("/policy/window", s.handleWindow)
		v1.Get("/policy/global-state", s.handleGlobalState)
		v1.Get("/rebases", s.handleListRebases)
		v1.Get("/rebases/export.parquet", s.handleExportRebases)
		v1.Get("/rebases/{epoch}", s.handleGetRebase)
		v1.Get("/supply", s.handleListSupply)
		v1.Get("/ledger", s.handleLedger)
		v1.Get("/events/ws", s.handleEventsWS)

		v1.Group(func(authed chi.Router) {
			authed.Use(s.auth.Middleware)
			authed.Post("/rebase", s.handleRebase)
			authed.Post("/admin/orchestrator", s.handleSetOrchestrator)
			authed.Post("/admin/inflation-rate", s.handleSetInflationRate)
			authed.Post("/admin/timing", s.handleSetTiming)
		})
	})

	return otelhttp.NewHandler(r, "rebased")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("rebased: http server listening", "address", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijack not supported")
	}
	return hj.Hijack()
}

func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		metrics.API().Observe(route, rec.status, time.Since(start))
	})
}
