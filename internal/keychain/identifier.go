package keychain

import "fmt"

// Identifier addresses one secret in the store.
type Identifier int

const (
	ScopedKey Identifier = iota
	UID
	Email
	IDToken
	AccessToken
	RefreshToken
)

var identifierNames = [...]string{
	ScopedKey:    "scopedKey",
	UID:          "uid",
	Email:        "email",
	IDToken:      "idToken",
	AccessToken:  "accessToken",
	RefreshToken: "refreshToken",
}

func (id Identifier) String() string {
	if id < 0 || int(id) >= len(identifierNames) {
		return fmt.Sprintf("identifier(%d)", int(id))
	}
	return identifierNames[id]
}

// Identifiers returns every identifier in declaration order.
func Identifiers() []Identifier {
	return []Identifier{ScopedKey, UID, Email, IDToken, AccessToken, RefreshToken}
}
