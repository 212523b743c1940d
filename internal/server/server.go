// Package server exposes the account state store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/fxastore"
	"github.com/florianilch/lockwise/internal/settings"
)

const (
	// DefaultHeartbeat is the interval between SSE keep-alive comments.
	DefaultHeartbeat = 15 * time.Second

	// DefaultActionRate and DefaultActionBurst bound POST /v1/actions.
	DefaultActionRate  rate.Limit = 20
	DefaultActionBurst            = 40
)

// State is the read side of the account state store.
type State interface {
	Snapshot() fxastore.Snapshot
	DisplayState(fn func(action.DisplayState)) (unsubscribe func())
	ScopedKey(fn func(string)) (unsubscribe func())
	ProfileInfo(fn func(action.ProfileInfo)) (unsubscribe func())
	OAuthInfo(fn func(action.OAuthInfo)) (unsubscribe func())
}

// Dispatcher accepts actions for broadcast.
type Dispatcher interface {
	Dispatch(a action.Action)
}

// Settings renders the settings rows and handles taps.
type Settings interface {
	Rows() []settings.Row
	Tap(ctx context.Context, id settings.RowID) error
}

// Option configures a Server.
type Option func(*Server)

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// WithActionRate limits accepted actions to r per second with the given burst.
func WithActionRate(r rate.Limit, burst int) Option {
	return func(s *Server) {
		s.actions = rate.NewLimiter(r, burst)
	}
}

// Server serves account state and accepts actions.
type Server struct {
	state      State
	dispatcher Dispatcher
	settings   Settings
	heartbeat  time.Duration
	actions    *rate.Limiter

	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server.
func New(state State, dispatcher Dispatcher, presenter Settings, opts ...Option) (*Server, error) {
	if state == nil {
		return nil, fmt.Errorf("missing state")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("missing dispatcher")
	}
	if presenter == nil {
		return nil, fmt.Errorf("missing settings presenter")
	}

	s := &Server{
		state:      state,
		dispatcher: dispatcher,
		settings:   presenter,
		heartbeat:  DefaultHeartbeat,
		actions:    rate.NewLimiter(DefaultActionRate, DefaultActionBurst),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := slog.Default()
	wrap := func(h http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		middlewares := append([]func(http.Handler) http.Handler{Logging(logger), Recovery}, extra...)
		return applyMiddlewares(h, middlewares...)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /v1/state", wrap(s.handleState))
	mux.Handle("GET /v1/state/events", wrap(s.handleEvents))
	mux.Handle("POST /v1/actions", wrap(s.handleAction, RateLimit(s.actions), LimitBody(maxRequestBody)))
	mux.Handle("GET /v1/settings", wrap(s.handleSettings))
	mux.Handle("POST /v1/settings/{row}/tap", wrap(s.handleSettingsTap, LimitBody(maxRequestBody)))
	mux.Handle("GET /metrics", promhttp.Handler())
	s.mux = mux

	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:     s,
		ReadTimeout: 30 * time.Second,
		// Event streams stay open; writes are bounded per stream by the client disconnecting.
		WriteTimeout: 0,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
