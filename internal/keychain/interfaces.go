package keychain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Backend when no value is stored for an identifier.
var ErrNotFound = errors.New("secret not found")

// Backend reads and writes secrets to persistent storage.
type Backend interface {
	// Read returns the stored value. Returns ErrNotFound (possibly wrapped)
	// if nothing is stored for id.
	Read(ctx context.Context, id Identifier) (string, error)

	// Write persists value under id, overwriting any existing value. Returns
	// error if the backend is read-only or the write fails.
	Write(ctx context.Context, id Identifier, value string) error

	// Delete removes the value stored under id. Deleting a missing value is not an error.
	Delete(ctx context.Context, id Identifier) error
}
