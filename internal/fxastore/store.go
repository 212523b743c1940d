// Package fxastore holds the signed-in account state and keeps it in step
// with the keychain.
//
// The store listens to the dispatcher for account actions, persists the
// sensitive fields they carry, and republishes only what was persisted. Each
// piece of state is exposed as a stream that replays its latest value to new
// subscribers. A value read from the keychain at construction seeds its
// stream when it is complete, so a restarted process comes back signed in
// without any action being dispatched.
package fxastore

import (
	"fmt"
	"log/slog"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/dispatch"
	"github.com/florianilch/lockwise/internal/keychain"
	"github.com/florianilch/lockwise/internal/observable"
)

// SecretStore persists secrets by identifier. Save reports whether the value
// was stored; Retrieve reports whether a value exists.
type SecretStore interface {
	Save(value string, id keychain.Identifier) bool
	Retrieve(id keychain.Identifier) (string, bool)
}

// ActionSource delivers dispatched actions.
type ActionSource interface {
	Subscribe(h dispatch.Handler) (unsubscribe func())
}

// Snapshot is the latest value of every stream. Absent values are nil.
type Snapshot struct {
	DisplayState *action.DisplayState
	ScopedKey    *string
	ProfileInfo  *action.ProfileInfo
	OAuthInfo    *action.OAuthInfo
}

// FxAStore is the single source of truth for account state.
type FxAStore struct {
	secrets SecretStore
	logger  *slog.Logger

	displayState *observable.Relay[action.DisplayState]
	scopedKey    *observable.Relay[string]
	profileInfo  *observable.Relay[action.ProfileInfo]
	oauthInfo    *observable.Relay[action.OAuthInfo]

	unsubscribe func()
}

// Option configures an FxAStore.
type Option func(*FxAStore)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FxAStore) {
		s.logger = logger
	}
}

// New seeds the store from secrets and subscribes it to source.
func New(source ActionSource, secrets SecretStore, opts ...Option) (*FxAStore, error) {
	if source == nil {
		return nil, fmt.Errorf("missing action source")
	}
	if secrets == nil {
		return nil, fmt.Errorf("missing secret store")
	}

	s := &FxAStore{
		secrets:      secrets,
		logger:       slog.Default(),
		displayState: observable.NewDistinctRelay[action.DisplayState](),
		scopedKey:    observable.NewRelay[string](),
		profileInfo:  observable.NewRelay[action.ProfileInfo](),
		oauthInfo:    observable.NewRelay[action.OAuthInfo](),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.seed()
	s.unsubscribe = source.Subscribe(s.handle)

	return s, nil
}

// Close stops the store from receiving further actions. Existing stream
// subscriptions remain valid but receive nothing new.
func (s *FxAStore) Close() {
	s.unsubscribe()
}

// seed publishes persisted values whose completeness already holds.
func (s *FxAStore) seed() {
	if key, ok := s.secrets.Retrieve(keychain.ScopedKey); ok {
		s.scopedKey.Publish(key)
	}

	uid, uidOK := s.secrets.Retrieve(keychain.UID)
	email, emailOK := s.secrets.Retrieve(keychain.Email)
	if uidOK && emailOK {
		s.profileInfo.Publish(action.ProfileInfo{UID: uid, Email: email})
	}

	idToken, idOK := s.secrets.Retrieve(keychain.IDToken)
	accessToken, accessOK := s.secrets.Retrieve(keychain.AccessToken)
	refreshToken, refreshOK := s.secrets.Retrieve(keychain.RefreshToken)
	if idOK && accessOK && refreshOK {
		s.oauthInfo.Publish(action.OAuthInfo{
			IDToken:      idToken,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		})
	}

	s.logger.Debug("account state seeded from keychain",
		"scoped_key", s.hasScopedKey(),
		"profile_info", uidOK && emailOK,
		"oauth_info", idOK && accessOK && refreshOK,
	)
}

func (s *FxAStore) handle(a action.Action) {
	switch a := a.(type) {
	case action.DisplayAction:
		s.displayState.Publish(a.State)
	case action.ScopedKeyAction:
		s.handleScopedKey(a.Key)
	case action.ProfileInfoAction:
		s.handleProfileInfo(a.Info)
	case action.OAuthInfoAction:
		s.handleOAuthInfo(a.Info)
	case action.SignOutAction:
		s.handleSignOut()
	}
}

// handleSignOut drops every stream's latest value. The keychain was already
// cleared by whoever dispatched the sign-out.
func (s *FxAStore) handleSignOut() {
	s.displayState.Reset()
	s.scopedKey.Reset()
	s.profileInfo.Reset()
	s.oauthInfo.Reset()
	s.logger.Info("account state cleared after sign-out")
}

func (s *FxAStore) handleScopedKey(key string) {
	if !s.secrets.Save(key, keychain.ScopedKey) {
		s.logger.Warn("scoped key not persisted, not publishing")
		return
	}
	s.scopedKey.Publish(key)
}

func (s *FxAStore) handleProfileInfo(info action.ProfileInfo) {
	// Both saves are attempted even if the first fails.
	uidSaved := s.secrets.Save(info.UID, keychain.UID)
	emailSaved := s.secrets.Save(info.Email, keychain.Email)

	if !uidSaved || !emailSaved {
		s.logger.Warn("profile info not persisted, not publishing", "uid_saved", uidSaved, "email_saved", emailSaved)
		return
	}
	// An empty field reads back as absent, so it could never be seeded.
	if !info.Complete() {
		s.logger.Warn("profile info incomplete, not publishing")
		return
	}
	s.profileInfo.Publish(info)
}

func (s *FxAStore) handleOAuthInfo(info action.OAuthInfo) {
	// All three saves are attempted so a partial write is durable for a retry.
	idSaved := s.secrets.Save(info.IDToken, keychain.IDToken)
	accessSaved := s.secrets.Save(info.AccessToken, keychain.AccessToken)
	refreshSaved := s.secrets.Save(info.RefreshToken, keychain.RefreshToken)

	if !idSaved || !accessSaved || !refreshSaved {
		s.logger.Warn("oauth info not persisted, not publishing",
			"id_token_saved", idSaved,
			"access_token_saved", accessSaved,
			"refresh_token_saved", refreshSaved,
		)
		return
	}
	if !info.Complete() {
		s.logger.Warn("oauth info incomplete, not publishing")
		return
	}
	s.oauthInfo.Publish(info)
}

// DisplayState subscribes fn to display state changes. Consecutive duplicates
// are not delivered.
func (s *FxAStore) DisplayState(fn func(action.DisplayState)) (unsubscribe func()) {
	return s.displayState.Subscribe(fn)
}

// ScopedKey subscribes fn to persisted scoped keys.
func (s *FxAStore) ScopedKey(fn func(string)) (unsubscribe func()) {
	return s.scopedKey.Subscribe(fn)
}

// ProfileInfo subscribes fn to persisted, complete profile information.
func (s *FxAStore) ProfileInfo(fn func(action.ProfileInfo)) (unsubscribe func()) {
	return s.profileInfo.Subscribe(fn)
}

// OAuthInfo subscribes fn to persisted, complete token triples.
func (s *FxAStore) OAuthInfo(fn func(action.OAuthInfo)) (unsubscribe func()) {
	return s.oauthInfo.Subscribe(fn)
}

// Snapshot returns the latest value of every stream.
func (s *FxAStore) Snapshot() Snapshot {
	var snap Snapshot
	if v, ok := s.displayState.Value(); ok {
		snap.DisplayState = &v
	}
	if v, ok := s.scopedKey.Value(); ok {
		snap.ScopedKey = &v
	}
	if v, ok := s.profileInfo.Value(); ok {
		snap.ProfileInfo = &v
	}
	if v, ok := s.oauthInfo.Value(); ok {
		snap.OAuthInfo = &v
	}
	return snap
}

func (s *FxAStore) hasScopedKey() bool {
	_, ok := s.scopedKey.Value()
	return ok
}
