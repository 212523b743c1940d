package action

// Action is a value broadcast by the dispatcher.
type Action interface {
	// Type returns the discriminator used when actions cross a JSON boundary.
	Type() string
}

// Discriminators for the JSON "type" field.
const (
	TypeDisplay        = "display"
	TypeScopedKey      = "scoped_key"
	TypeProfileInfo    = "profile_info"
	TypeOAuthInfo      = "oauth_info"
	TypeSettingChanged = "setting_changed"
	TypeRoute          = "route"
	TypeSignOut        = "sign_out"
)

// ProfileInfo identifies the signed-in account.
type ProfileInfo struct {
	UID   string `json:"uid" validate:"required"`
	Email string `json:"email" validate:"required"`
}

// Complete reports whether both the uid and the email are present.
func (p ProfileInfo) Complete() bool {
	return p.UID != "" && p.Email != ""
}

// OAuthInfo holds the token triple returned by the account server.
type OAuthInfo struct {
	IDToken      string `json:"id_token" validate:"required"`
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Complete reports whether all three tokens are present.
func (o OAuthInfo) Complete() bool {
	return o.IDToken != "" && o.AccessToken != "" && o.RefreshToken != ""
}

// DisplayAction changes the login display state.
type DisplayAction struct {
	State DisplayState `json:"state"`
}

func (DisplayAction) Type() string { return TypeDisplay }

// ScopedKeyAction carries a freshly derived scoped encryption key.
type ScopedKeyAction struct {
	Key string `json:"key" validate:"required"`
}

func (ScopedKeyAction) Type() string { return TypeScopedKey }

// ProfileInfoAction carries the account profile fetched after login.
type ProfileInfoAction struct {
	Info ProfileInfo `json:"info"`
}

func (ProfileInfoAction) Type() string { return TypeProfileInfo }

// OAuthInfoAction carries tokens from a login or a refresh.
type OAuthInfoAction struct {
	Info OAuthInfo `json:"info"`
}

func (OAuthInfoAction) Type() string { return TypeOAuthInfo }

// SettingChangedAction reports that a boolean setting was toggled.
type SettingChangedAction struct {
	Key   string `json:"key" validate:"required"`
	Value bool   `json:"value"`
}

func (SettingChangedAction) Type() string { return TypeSettingChanged }

// Route names a navigation destination.
type Route string

const (
	RouteAccount         Route = "account"
	RouteAutoLock        Route = "autolock"
	RouteFAQ             Route = "faq"
	RouteProvideFeedback Route = "provide_feedback"
	RouteWelcome         Route = "welcome"
)

// RouteAction requests navigation to a destination.
type RouteAction struct {
	Route Route `json:"route" validate:"required"`
}

func (RouteAction) Type() string { return TypeRoute }

// SignOutAction reports that the account secrets were removed from the
// keychain. Decode does not accept it: signing out must clear the keychain
// before it is announced.
type SignOutAction struct{}

func (SignOutAction) Type() string { return TypeSignOut }
