package keychain

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringBackend provides OS-native secure credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// Each identifier is stored as its own account under a shared service name.
type KeyringBackend struct {
	service string
}

// Compile-time check to ensure KeyringBackend implements Backend
var _ Backend = (*KeyringBackend)(nil)

// NewKeyringBackend creates a KeyringBackend storing entries under the given service.
func NewKeyringBackend(service string) (*KeyringBackend, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringBackend{
		service: service,
	}, nil
}

// Read returns the value from the system keyring.
func (k *KeyringBackend) Read(ctx context.Context, id Identifier) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := keyring.Get(k.service, id.String())
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: keyring service %s, account %s", ErrNotFound, k.service, id)
	}
	if err != nil {
		return "", err
	}

	if value == "" {
		return "", fmt.Errorf("%w: empty value in keyring for service %s, account %s", ErrNotFound, k.service, id)
	}

	return value, nil
}

// Write persists the value to the system keyring, overwriting any existing value.
func (k *KeyringBackend) Write(ctx context.Context, id Identifier, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, id.String(), value)
}

// Delete removes the entry from the system keyring.
func (k *KeyringBackend) Delete(ctx context.Context, id Identifier) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := keyring.Delete(k.service, id.String())
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
