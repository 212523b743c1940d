package keychain

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvBackend provides read-only access to secrets stored in environment variables
// named <prefix><IDENTIFIER>, e.g. LOCKWISE_SECRET_SCOPEDKEY.
// Every write fails, so the account state store only publishes values seeded from the environment.
type EnvBackend struct {
	prefix string
}

// Compile-time check to ensure EnvBackend implements Backend
var _ Backend = (*EnvBackend)(nil)

// NewEnvBackend creates an EnvBackend reading variables with the given prefix.
func NewEnvBackend(prefix string) (*EnvBackend, error) {
	if prefix == "" {
		return nil, fmt.Errorf("environment prefix cannot be empty")
	}

	return &EnvBackend{
		prefix: prefix,
	}, nil
}

// Read returns the value from the environment variable for id.
func (e *EnvBackend) Read(ctx context.Context, id Identifier) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value := os.Getenv(e.key(id))
	if value == "" {
		return "", fmt.Errorf("%w: environment variable %s", ErrNotFound, e.key(id))
	}
	return value, nil
}

// Write is not supported for environment variables (they are read-only).
func (e *EnvBackend) Write(ctx context.Context, id Identifier, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}

// Delete is not supported for environment variables (they are read-only).
func (e *EnvBackend) Delete(ctx context.Context, id Identifier) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}

func (e *EnvBackend) key(id Identifier) string {
	return e.prefix + strings.ToUpper(id.String())
}
