package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/dispatch"
	"github.com/florianilch/lockwise/internal/fxastore"
	"github.com/florianilch/lockwise/internal/keychain"
	"github.com/florianilch/lockwise/internal/server"
	"github.com/florianilch/lockwise/internal/settings"
	"github.com/florianilch/lockwise/internal/tokensource"
)

// Version is reported on the settings screen. Overridden at build time.
var Version = "dev"

// App orchestrates the lifecycle of the account state store and related services.
type App struct {
	cfg       *Config
	session   *Session
	presenter *settings.Presenter
	server    *server.Server
	refresher *Refresher
}

// New creates a new App instance. The keychain is read once here to seed the store.
func New(cfg *Config) (*App, error) {
	session, err := OpenSession(cfg)
	if err != nil {
		return nil, err
	}

	presenter, err := settings.NewPresenter(session.Dispatcher, session.Keychain, cfg.Settings.Values(), session.Store.ProfileInfo, Version)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create settings presenter: %w", err)
	}

	srv, err := server.New(session.Store, session.Dispatcher, presenter,
		server.WithActionRate(rate.Limit(cfg.Server.ActionRate), cfg.Server.ActionBurst))
	if err != nil {
		presenter.Close()
		session.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	a := &App{
		cfg:       cfg,
		session:   session,
		presenter: presenter,
		server:    srv,
	}

	if cfg.OAuth.Enabled {
		refresher, err := newRefresher(cfg.OAuth, session.Dispatcher, session.Store)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create token refresher: %w", err)
		}
		a.refresher = refresher
	}

	return a, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting state server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if a.refresher != nil {
		slog.InfoContext(gCtx, "starting token refresher", "interval", a.cfg.OAuth.RefreshInterval)
		g.Go(func() error {
			return a.refresher.Run(gCtx)
		})
	}

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

func (a *App) close() {
	if a.refresher != nil {
		a.refresher.Close()
	}
	a.presenter.Close()
	a.session.Close()
}

// newRefresher creates a Refresher against the configured token endpoint.
func newRefresher(cfg OAuthConfig, dispatcher Dispatcher, store *fxastore.FxAStore) (*Refresher, error) {
	endpoint := tokensource.Endpoint
	endpoint.TokenURL = cfg.TokenURL

	factory := func(current action.OAuthInfo) OAuthSource {
		return tokensource.NewTokenSource(cfg.ClientID, current, endpoint, tokensource.WithTTL(cfg.AccessTokenTTL))
	}

	return NewRefresher(factory, dispatcher, store.OAuthInfo, cfg.RefreshInterval)
}

// Session is an account store wired to its dispatcher and keychain.
type Session struct {
	Dispatcher *dispatch.Dispatcher
	Store      *fxastore.FxAStore
	Keychain   *keychain.Manager
}

// OpenSession seeds an account store from the configured keychain without
// starting any service.
func OpenSession(cfg *Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	secrets, err := cfg.Keychain.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create keychain: %w", err)
	}

	dispatcher := dispatch.New()

	store, err := fxastore.New(dispatcher, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to create account store: %w", err)
	}

	return &Session{
		Dispatcher: dispatcher,
		Store:      store,
		Keychain:   secrets,
	}, nil
}

// Close detaches the store from the dispatcher.
func (s *Session) Close() {
	s.Store.Close()
}
