// Package tokensource refreshes Firefox Accounts OAuth tokens.
//
// The Firefox Accounts OAuth server takes token requests as JSON bodies while
// golang.org/x/oauth2 sends them form-encoded, so refresh requests pass
// through a transport that re-encodes them and adds the scope and lifetime
// the server expects. Error responses carry a numeric errno, surfaced as
// *ServerError.
//
// Refresh from a persisted token triple:
//
//	ts := tokensource.NewTokenSource(clientID, current, tokensource.Endpoint,
//		tokensource.WithTTL(time.Hour))
//	next, err := ts.OAuthInfo()
//	if tokensource.IsInvalidToken(err) {
//		// the refresh token was revoked; sign in again
//	}
//
// next keeps current's id token and refresh token when the server does not
// rotate them.
package tokensource
