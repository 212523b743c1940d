package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/dispatch"
	"github.com/florianilch/lockwise/internal/tokensource"
)

// OAuthSource refreshes a persisted token triple.
type OAuthSource interface {
	OAuthInfo() (action.OAuthInfo, error)
}

// TokenSourceFactory creates an OAuthSource refreshing from current.
type TokenSourceFactory func(current action.OAuthInfo) OAuthSource

// Dispatcher broadcasts actions and delivers them to subscribers.
type Dispatcher interface {
	Dispatch(a action.Action)
	Subscribe(h dispatch.Handler) (unsubscribe func())
}

// OAuthStream subscribes to persisted token triples.
type OAuthStream func(fn func(action.OAuthInfo)) (unsubscribe func())

// Refresher periodically refreshes the access token and dispatches the result.
// It never writes to the keychain itself: new tokens flow through the account
// state store, and Refresher only learns about them once they are persisted.
// A sign-out makes it forget the tokens it holds.
type Refresher struct {
	factory    TokenSourceFactory
	dispatcher Dispatcher
	interval   time.Duration

	mu      sync.Mutex
	current *action.OAuthInfo

	unsubscribe []func()
}

// NewRefresher creates a Refresher following the persisted tokens on stream.
func NewRefresher(factory TokenSourceFactory, dispatcher Dispatcher, stream OAuthStream, interval time.Duration) (*Refresher, error) {
	if factory == nil {
		return nil, fmt.Errorf("missing token source factory")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("missing dispatcher")
	}
	if stream == nil {
		return nil, fmt.Errorf("missing oauth stream")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive")
	}

	r := &Refresher{
		factory:    factory,
		dispatcher: dispatcher,
		interval:   interval,
	}
	r.unsubscribe = []func(){
		stream(func(info action.OAuthInfo) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.current = &info
		}),
		dispatcher.Subscribe(func(a action.Action) {
			if _, ok := a.(action.SignOutAction); ok {
				r.forget(nil)
			}
		}),
	}
	return r, nil
}

// Close stops following the token stream and sign-outs.
func (r *Refresher) Close() {
	for _, unsubscribe := range r.unsubscribe {
		unsubscribe()
	}
}

// forget drops the held tokens. With a non-nil only they are dropped only if
// they are still the ones held.
func (r *Refresher) forget(only *action.OAuthInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if only == nil || r.current == only {
		r.current = nil
	}
}

// Refresh exchanges the current refresh token for fresh tokens and dispatches
// them if anything changed. Without persisted tokens it does nothing. Tokens
// replaced or signed out while the request was in flight are not revived.
func (r *Refresher) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	current := r.current
	r.mu.Unlock()

	if current == nil {
		slog.DebugContext(ctx, "no persisted tokens, skipping refresh")
		return nil
	}

	next, err := r.factory(*current).OAuthInfo()
	if err != nil {
		if tokensource.IsInvalidToken(err) {
			slog.WarnContext(ctx, "refresh token rejected, pausing refresh until next sign-in")
			r.forget(current)
		}
		return fmt.Errorf("refreshing access token: %w", err)
	}

	if next == *current {
		return nil
	}

	r.mu.Lock()
	stale := r.current != current
	r.mu.Unlock()
	if stale {
		slog.DebugContext(ctx, "tokens changed during refresh, discarding result")
		return nil
	}

	slog.InfoContext(ctx, "access token refreshed", "refresh_token_rotated", next.RefreshToken != current.RefreshToken)
	r.dispatcher.Dispatch(action.OAuthInfoAction{Info: next})
	return nil
}

// Run refreshes on every interval tick until ctx is cancelled. Refresh
// failures are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				slog.ErrorContext(ctx, "token refresh failed", "error", err)
			}
		}
	}
}
