package keychain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single backend call made by Manager.
const DefaultTimeout = 5 * time.Second

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the per-call backend timeout.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithLogger sets the logger used to report backend failures.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager exposes a Backend through the save-flag / optional-value contract.
// It never returns backend errors; failures are logged with the identifier
// (never the value) and reported as false.
type Manager struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

// NewManager creates a Manager over backend.
func NewManager(backend Backend, opts ...ManagerOption) (*Manager, error) {
	if backend == nil {
		return nil, fmt.Errorf("missing keychain backend")
	}

	m := &Manager{
		backend: backend,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Save persists value under id and reports whether it was stored.
func (m *Manager) Save(value string, id Identifier) bool {
	// Callers react to dispatched actions, which carry no context.
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.backend.Write(ctx, id, value); err != nil {
		m.logger.WarnContext(ctx, "failed to save secret", "identifier", id.String(), "error", err)
		observe(opSave, id, resultError)
		return false
	}
	observe(opSave, id, resultOK)
	return true
}

// Retrieve returns the value stored under id. ok is false if nothing is stored
// or the backend could not be read.
func (m *Manager) Retrieve(id Identifier) (value string, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	value, err := m.backend.Read(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		observe(opRetrieve, id, resultNotFound)
		return "", false
	case err != nil:
		m.logger.WarnContext(ctx, "failed to retrieve secret", "identifier", id.String(), "error", err)
		observe(opRetrieve, id, resultError)
		return "", false
	case value == "":
		observe(opRetrieve, id, resultNotFound)
		return "", false
	}
	observe(opRetrieve, id, resultOK)
	return value, true
}

// Clear deletes every identifier from the backend.
func (m *Manager) Clear(ctx context.Context) error {
	var errs []error
	for _, id := range Identifiers() {
		if err := m.backend.Delete(ctx, id); err != nil {
			observe(opDelete, id, resultError)
			errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
			continue
		}
		observe(opDelete, id, resultOK)
	}
	return errors.Join(errs...)
}
