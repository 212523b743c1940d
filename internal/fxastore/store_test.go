package fxastore

import (
	"reflect"
	"sync"
	"testing"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/dispatch"
	"github.com/florianilch/lockwise/internal/keychain"
)

// saveCall records one Save invocation.
type saveCall struct {
	Value string
	ID    keychain.Identifier
}

// fakeSecretStore records saves and serves canned retrieves. Saves succeed
// unless the identifier is listed in fail.
type fakeSecretStore struct {
	mu     sync.Mutex
	saves  []saveCall
	fail   map[keychain.Identifier]bool
	stored map[keychain.Identifier]string
}

func newFakeSecretStore() *fakeSecretStore {
	return &fakeSecretStore{
		fail:   make(map[keychain.Identifier]bool),
		stored: make(map[keychain.Identifier]string),
	}
}

func (f *fakeSecretStore) Save(value string, id keychain.Identifier) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, saveCall{Value: value, ID: id})
	if f.fail[id] {
		return false
	}
	f.stored[id] = value
	return true
}

func (f *fakeSecretStore) Retrieve(id keychain.Identifier) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.stored[id]
	return v, ok
}

func (f *fakeSecretStore) saveCalls() []saveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]saveCall(nil), f.saves...)
}

// collect subscribes to a stream and returns a func reporting what arrived.
func collect[T any](t *testing.T, subscribe func(func(T)) func()) func() []T {
	t.Helper()
	var (
		mu     sync.Mutex
		events []T
	)
	unsubscribe := subscribe(func(v T) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, v)
	})
	t.Cleanup(unsubscribe)
	return func() []T {
		mu.Lock()
		defer mu.Unlock()
		return append([]T(nil), events...)
	}
}

func newTestStore(t *testing.T, secrets *fakeSecretStore) (*FxAStore, *dispatch.Dispatcher) {
	t.Helper()
	d := dispatch.New()
	s, err := New(d, secrets)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s, d
}

func TestDisplayStatePublishesDistinctValues(t *testing.T) {
	s, d := newTestStore(t, newFakeSecretStore())
	events := collect(t, s.DisplayState)

	d.Dispatch(action.DisplayAction{State: action.DisplayFetchingUserInfo})
	d.Dispatch(action.DisplayAction{State: action.DisplayFetchingUserInfo})
	d.Dispatch(action.DisplayAction{State: action.DisplayFinishedFetchingUserInfo})
	d.Dispatch(action.DisplayAction{State: action.DisplayFetchingUserInfo})

	want := []action.DisplayState{
		action.DisplayFetchingUserInfo,
		action.DisplayFinishedFetchingUserInfo,
		action.DisplayFetchingUserInfo,
	}
	if got := events(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDisplayStateEmitsNothingWithoutAction(t *testing.T) {
	s, _ := newTestStore(t, newFakeSecretStore())
	events := collect(t, s.DisplayState)

	if got := events(); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestScopedKey(t *testing.T) {
	tests := []struct {
		name     string
		fail     bool
		wantKeys []string
	}{
		{name: "save succeeds", fail: false, wantKeys: []string{"abcdkey"}},
		{name: "save fails", fail: true, wantKeys: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets := newFakeSecretStore()
			secrets.fail[keychain.ScopedKey] = tt.fail
			s, d := newTestStore(t, secrets)
			events := collect(t, s.ScopedKey)

			d.Dispatch(action.ScopedKeyAction{Key: "abcdkey"})

			if got := events(); !reflect.DeepEqual(got, tt.wantKeys) {
				t.Errorf("events: got %v, want %v", got, tt.wantKeys)
			}
			wantSaves := []saveCall{{Value: "abcdkey", ID: keychain.ScopedKey}}
			if got := secrets.saveCalls(); !reflect.DeepEqual(got, wantSaves) {
				t.Errorf("saves: got %v, want %v", got, wantSaves)
			}
		})
	}
}

func TestScopedKeyNoActionNoEmission(t *testing.T) {
	secrets := newFakeSecretStore()
	s, _ := newTestStore(t, secrets)
	events := collect(t, s.ScopedKey)

	if got := events(); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
	if got := secrets.saveCalls(); len(got) != 0 {
		t.Errorf("expected no saves, got %v", got)
	}
}

func TestProfileInfo(t *testing.T) {
	info := action.ProfileInfo{UID: "jklfsdlkjdfs", Email: "sand@sand.com"}

	tests := []struct {
		name string
		fail []keychain.Identifier
		want []action.ProfileInfo
	}{
		{name: "both saves succeed", want: []action.ProfileInfo{info}},
		{name: "uid save fails", fail: []keychain.Identifier{keychain.UID}},
		{name: "email save fails", fail: []keychain.Identifier{keychain.Email}},
		{name: "both saves fail", fail: []keychain.Identifier{keychain.UID, keychain.Email}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets := newFakeSecretStore()
			for _, id := range tt.fail {
				secrets.fail[id] = true
			}
			s, d := newTestStore(t, secrets)
			events := collect(t, s.ProfileInfo)

			d.Dispatch(action.ProfileInfoAction{Info: info})

			if got := events(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("events: got %v, want %v", got, tt.want)
			}
			wantSaves := []saveCall{
				{Value: "jklfsdlkjdfs", ID: keychain.UID},
				{Value: "sand@sand.com", ID: keychain.Email},
			}
			if got := secrets.saveCalls(); !reflect.DeepEqual(got, wantSaves) {
				t.Errorf("saves: got %v, want %v", got, wantSaves)
			}
		})
	}
}

func TestOAuthInfo(t *testing.T) {
	info := action.OAuthInfo{IDToken: "id", AccessToken: "access", RefreshToken: "refresh"}

	tests := []struct {
		name string
		fail []keychain.Identifier
		want []action.OAuthInfo
	}{
		{name: "all saves succeed", want: []action.OAuthInfo{info}},
		{name: "id token save fails", fail: []keychain.Identifier{keychain.IDToken}},
		{name: "access token save fails", fail: []keychain.Identifier{keychain.AccessToken}},
		{name: "refresh token save fails", fail: []keychain.Identifier{keychain.RefreshToken}},
		{name: "all saves fail", fail: []keychain.Identifier{keychain.IDToken, keychain.AccessToken, keychain.RefreshToken}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets := newFakeSecretStore()
			for _, id := range tt.fail {
				secrets.fail[id] = true
			}
			s, d := newTestStore(t, secrets)
			events := collect(t, s.OAuthInfo)

			d.Dispatch(action.OAuthInfoAction{Info: info})

			if got := events(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("events: got %v, want %v", got, tt.want)
			}
			wantSaves := []saveCall{
				{Value: "id", ID: keychain.IDToken},
				{Value: "access", ID: keychain.AccessToken},
				{Value: "refresh", ID: keychain.RefreshToken},
			}
			if got := secrets.saveCalls(); !reflect.DeepEqual(got, wantSaves) {
				t.Errorf("saves: got %v, want %v", got, wantSaves)
			}
		})
	}
}

func TestSeedFromKeychain(t *testing.T) {
	tests := []struct {
		name        string
		stored      map[keychain.Identifier]string
		wantKeys    []string
		wantProfile []action.ProfileInfo
		wantOAuth   []action.OAuthInfo
	}{
		{
			name: "empty keychain",
		},
		{
			name:     "scoped key only",
			stored:   map[keychain.Identifier]string{keychain.ScopedKey: "stored-key"},
			wantKeys: []string{"stored-key"},
		},
		{
			name:   "uid without email",
			stored: map[keychain.Identifier]string{keychain.UID: "kjfdslkjsdflkjads"},
		},
		{
			name:   "email without uid",
			stored: map[keychain.Identifier]string{keychain.Email: "sand@sand.com"},
		},
		{
			name: "uid and email",
			stored: map[keychain.Identifier]string{
				keychain.UID:   "kjfdslkjsdflkjads",
				keychain.Email: "sand@sand.com",
			},
			wantProfile: []action.ProfileInfo{{UID: "kjfdslkjsdflkjads", Email: "sand@sand.com"}},
		},
		{
			name: "two of three tokens",
			stored: map[keychain.Identifier]string{
				keychain.IDToken:     "id",
				keychain.AccessToken: "access",
			},
		},
		{
			name: "all tokens",
			stored: map[keychain.Identifier]string{
				keychain.IDToken:      "id",
				keychain.AccessToken:  "access",
				keychain.RefreshToken: "refresh",
			},
			wantOAuth: []action.OAuthInfo{{IDToken: "id", AccessToken: "access", RefreshToken: "refresh"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets := newFakeSecretStore()
			for id, v := range tt.stored {
				secrets.stored[id] = v
			}
			s, _ := newTestStore(t, secrets)

			keys := collect(t, s.ScopedKey)
			profiles := collect(t, s.ProfileInfo)
			oauth := collect(t, s.OAuthInfo)

			if got := keys(); !reflect.DeepEqual(got, tt.wantKeys) {
				t.Errorf("scoped key: got %v, want %v", got, tt.wantKeys)
			}
			if got := profiles(); !reflect.DeepEqual(got, tt.wantProfile) {
				t.Errorf("profile info: got %v, want %v", got, tt.wantProfile)
			}
			if got := oauth(); !reflect.DeepEqual(got, tt.wantOAuth) {
				t.Errorf("oauth info: got %v, want %v", got, tt.wantOAuth)
			}
			if got := secrets.saveCalls(); len(got) != 0 {
				t.Errorf("seeding must not save, got %v", got)
			}
		})
	}
}

func TestLateSubscriberReceivesLatestValue(t *testing.T) {
	s, d := newTestStore(t, newFakeSecretStore())

	d.Dispatch(action.ScopedKeyAction{Key: "first"})
	d.Dispatch(action.ScopedKeyAction{Key: "second"})

	events := collect(t, s.ScopedKey)
	d.Dispatch(action.ScopedKeyAction{Key: "third"})

	if got, want := events(), []string{"second", "third"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFailedSaveKeepsPreviousValue(t *testing.T) {
	secrets := newFakeSecretStore()
	secrets.stored[keychain.ScopedKey] = "seeded"
	s, d := newTestStore(t, secrets)
	events := collect(t, s.ScopedKey)

	secrets.mu.Lock()
	secrets.fail[keychain.ScopedKey] = true
	secrets.mu.Unlock()
	d.Dispatch(action.ScopedKeyAction{Key: "rejected"})

	if got, want := events(), []string{"seeded"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	snap := s.Snapshot()
	if snap.ScopedKey == nil || *snap.ScopedKey != "seeded" {
		t.Errorf("snapshot scoped key = %v, want seeded", snap.ScopedKey)
	}
}

func TestIgnoresUnrelatedActions(t *testing.T) {
	secrets := newFakeSecretStore()
	s, d := newTestStore(t, secrets)

	d.Dispatch(action.RouteAction{Route: action.RouteFAQ})
	d.Dispatch(action.SettingChangedAction{Key: "autolock", Value: true})

	if got := secrets.saveCalls(); len(got) != 0 {
		t.Errorf("expected no saves, got %v", got)
	}
	if snap := s.Snapshot(); snap != (Snapshot{}) {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestCloseStopsUpdates(t *testing.T) {
	secrets := newFakeSecretStore()
	d := dispatch.New()
	s, err := New(d, secrets)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := collect(t, s.ScopedKey)

	s.Close()
	d.Dispatch(action.ScopedKeyAction{Key: "late"})

	if got := events(); len(got) != 0 {
		t.Errorf("expected no events after Close, got %v", got)
	}
	if got := secrets.saveCalls(); len(got) != 0 {
		t.Errorf("expected no saves after Close, got %v", got)
	}
}

func TestSnapshot(t *testing.T) {
	s, d := newTestStore(t, newFakeSecretStore())

	d.Dispatch(action.DisplayAction{State: action.DisplayFinishedFetchingScopedKey})
	d.Dispatch(action.ProfileInfoAction{Info: action.ProfileInfo{UID: "u", Email: "e"}})

	snap := s.Snapshot()
	if snap.DisplayState == nil || *snap.DisplayState != action.DisplayFinishedFetchingScopedKey {
		t.Errorf("display state = %v", snap.DisplayState)
	}
	if snap.ProfileInfo == nil || *snap.ProfileInfo != (action.ProfileInfo{UID: "u", Email: "e"}) {
		t.Errorf("profile info = %v", snap.ProfileInfo)
	}
	if snap.ScopedKey != nil || snap.OAuthInfo != nil {
		t.Errorf("expected scoped key and oauth info absent, got %+v", snap)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, newFakeSecretStore()); err == nil {
		t.Error("expected error for nil action source")
	}
	if _, err := New(dispatch.New(), nil); err == nil {
		t.Error("expected error for nil secret store")
	}
}

func TestWithKeychainManager(t *testing.T) {
	m, err := keychain.NewManager(keychain.NewMemoryBackend())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d := dispatch.New()
	first, err := New(d, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Dispatch(action.ProfileInfoAction{Info: action.ProfileInfo{UID: "jklfsdlkjdfs", Email: "sand@sand.com"}})
	first.Close()

	second, err := New(dispatch.New(), m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(second.Close)
	events := collect(t, second.ProfileInfo)

	want := []action.ProfileInfo{{UID: "jklfsdlkjdfs", Email: "sand@sand.com"}}
	if got := events(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestIncompleteInfoIsSavedButNotPublished(t *testing.T) {
	t.Run("profile info", func(t *testing.T) {
		secrets := newFakeSecretStore()
		s, d := newTestStore(t, secrets)
		events := collect(t, s.ProfileInfo)

		d.Dispatch(action.ProfileInfoAction{Info: action.ProfileInfo{UID: "u"}})

		if got := events(); len(got) != 0 {
			t.Errorf("incomplete profile published: %v", got)
		}
		if got := len(secrets.saveCalls()); got != 2 {
			t.Errorf("expected both saves attempted, got %d", got)
		}
	})

	t.Run("oauth info", func(t *testing.T) {
		secrets := newFakeSecretStore()
		s, d := newTestStore(t, secrets)
		events := collect(t, s.OAuthInfo)

		d.Dispatch(action.OAuthInfoAction{Info: action.OAuthInfo{IDToken: "id", RefreshToken: "refresh"}})

		if got := events(); len(got) != 0 {
			t.Errorf("incomplete oauth info published: %v", got)
		}
		if got := len(secrets.saveCalls()); got != 3 {
			t.Errorf("expected all three saves attempted, got %d", got)
		}
	})
}

func TestIncompleteProfileMatchesRestart(t *testing.T) {
	manager, err := keychain.NewManager(keychain.NewMemoryBackend())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d := dispatch.New()
	live, err := New(d, manager)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer live.Close()

	d.Dispatch(action.ProfileInfoAction{Info: action.ProfileInfo{UID: "u"}})

	restarted, err := New(dispatch.New(), manager)
	if err != nil {
		t.Fatalf("New after restart: %v", err)
	}
	defer restarted.Close()

	if got := live.Snapshot().ProfileInfo; got != nil {
		t.Errorf("live store holds incomplete profile %v", got)
	}
	if got := restarted.Snapshot().ProfileInfo; got != nil {
		t.Errorf("restarted store seeded profile %v", got)
	}
}

func TestSignOutClearsStreams(t *testing.T) {
	secrets := newFakeSecretStore()
	s, d := newTestStore(t, secrets)

	d.Dispatch(action.DisplayAction{State: action.DisplayLoading})
	d.Dispatch(action.ScopedKeyAction{Key: "key"})
	d.Dispatch(action.ProfileInfoAction{Info: action.ProfileInfo{UID: "u", Email: "e@x"}})
	d.Dispatch(action.OAuthInfoAction{Info: action.OAuthInfo{IDToken: "i", AccessToken: "a", RefreshToken: "r"}})
	display := collect(t, s.DisplayState)

	d.Dispatch(action.SignOutAction{})

	if snap := s.Snapshot(); snap != (Snapshot{}) {
		t.Errorf("snapshot after sign-out = %+v", snap)
	}
	late := collect(t, s.ProfileInfo)
	if got := late(); len(got) != 0 {
		t.Errorf("late subscriber got %v after sign-out", got)
	}

	// The loading state that follows a sign-out is delivered again.
	d.Dispatch(action.DisplayAction{State: action.DisplayLoading})
	want := []action.DisplayState{action.DisplayLoading, action.DisplayLoading}
	if got := display(); !reflect.DeepEqual(got, want) {
		t.Errorf("display events = %v, want %v", got, want)
	}
}
