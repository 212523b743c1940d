package tokensource

import (
	"golang.org/x/oauth2"
)

// Endpoint defines the OAuth2 endpoints for Firefox Accounts.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.firefox.com/authorization",
	TokenURL:  "https://oauth.accounts.firefox.com/v1/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// scopes defines the OAuth scopes the password manager requests.
var scopes = []string{"profile", "openid", "https://identity.mozilla.com/apps/lockbox"}
