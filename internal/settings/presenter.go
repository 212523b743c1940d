// Package settings turns settings-screen events into dispatched actions.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/florianilch/lockwise/internal/action"
)

// RowID identifies a row on the settings screen.
type RowID string

const (
	RowAccount        RowID = "account"
	RowAutoLock       RowID = "autolock"
	RowBiometricLogin RowID = "biometric_login"
	RowUsageData      RowID = "usage_data"
	RowFAQ            RowID = "faq"
	RowFeedback       RowID = "feedback"
	RowSignOut        RowID = "sign_out"
	RowVersion        RowID = "version"
)

// Row is one entry on the settings screen.
type Row struct {
	ID     RowID  `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	// Toggle is set for rows that flip a boolean setting; On is its current value.
	Toggle bool `json:"toggle,omitempty"`
	On     bool `json:"on,omitempty"`
}

// Dispatcher accepts actions for broadcast.
type Dispatcher interface {
	Dispatch(a action.Action)
}

// Clearer removes all stored account secrets.
type Clearer interface {
	Clear(ctx context.Context) error
}

// ProfileStream subscribes to persisted profile information.
type ProfileStream func(fn func(action.ProfileInfo)) (unsubscribe func())

// Presenter builds the settings rows and routes taps.
type Presenter struct {
	dispatcher Dispatcher
	secrets    Clearer
	values     Values
	version    string

	mu    sync.RWMutex
	email string

	unsubscribe func()
}

// NewPresenter creates a Presenter and starts following profile updates.
func NewPresenter(dispatcher Dispatcher, secrets Clearer, values Values, profile ProfileStream, version string) (*Presenter, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("missing dispatcher")
	}
	if secrets == nil {
		return nil, fmt.Errorf("missing secret store")
	}
	if values == nil {
		return nil, fmt.Errorf("missing settings values")
	}
	if profile == nil {
		return nil, fmt.Errorf("missing profile stream")
	}

	p := &Presenter{
		dispatcher: dispatcher,
		secrets:    secrets,
		values:     values,
		version:    version,
	}
	p.unsubscribe = profile(func(info action.ProfileInfo) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.email = info.Email
	})
	return p, nil
}

// Close stops following profile updates.
func (p *Presenter) Close() {
	p.unsubscribe()
}

// Rows returns the settings rows in display order.
func (p *Presenter) Rows() []Row {
	p.mu.RLock()
	email := p.email
	p.mu.RUnlock()

	return []Row{
		{ID: RowAccount, Title: "Account", Detail: email},
		{ID: RowAutoLock, Title: "Auto Lock"},
		{ID: RowBiometricLogin, Title: "Unlock with Biometrics", Toggle: true, On: p.values.Bool(KeyBiometricLogin)},
		{ID: RowUsageData, Title: "Send Usage Data", Toggle: true, On: p.values.Bool(KeyUsageData)},
		{ID: RowFAQ, Title: "FAQ"},
		{ID: RowFeedback, Title: "Provide Feedback"},
		{ID: RowSignOut, Title: "Sign Out"},
		{ID: RowVersion, Title: "Version", Detail: p.version},
	}
}

// Tap handles a tap on the row identified by id.
func (p *Presenter) Tap(ctx context.Context, id RowID) error {
	switch id {
	case RowAccount:
		p.dispatcher.Dispatch(action.RouteAction{Route: action.RouteAccount})
	case RowAutoLock:
		p.dispatcher.Dispatch(action.RouteAction{Route: action.RouteAutoLock})
	case RowFAQ:
		p.dispatcher.Dispatch(action.RouteAction{Route: action.RouteFAQ})
	case RowFeedback:
		p.dispatcher.Dispatch(action.RouteAction{Route: action.RouteProvideFeedback})
	case RowBiometricLogin:
		p.toggle(KeyBiometricLogin)
	case RowUsageData:
		p.toggle(KeyUsageData)
	case RowSignOut:
		if err := p.secrets.Clear(ctx); err != nil {
			return fmt.Errorf("clearing account secrets: %w", err)
		}
		p.mu.Lock()
		p.email = ""
		p.mu.Unlock()

		slog.InfoContext(ctx, "signed out")
		p.dispatcher.Dispatch(action.SignOutAction{})
		p.dispatcher.Dispatch(action.DisplayAction{State: action.DisplayLoading})
		p.dispatcher.Dispatch(action.RouteAction{Route: action.RouteWelcome})
	case RowVersion:
		// Informational only.
	default:
		return fmt.Errorf("unknown settings row %q", id)
	}
	return nil
}

func (p *Presenter) toggle(key string) {
	value := p.values.Toggle(key)
	p.dispatcher.Dispatch(action.SettingChangedAction{Key: key, Value: value})
}
