package keychain

import (
	"context"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// MemoryBackend is an in-memory Backend. Nothing survives the process.
//
// Values are sealed in memguard enclaves, so plaintext only exists in locked
// memory while a Read is copying it out. Call memguard.Purge at exit to wipe
// the enclave key.
type MemoryBackend struct {
	mu      sync.RWMutex
	secrets map[Identifier]*memguard.Enclave
}

// Compile-time check to ensure MemoryBackend implements Backend
var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{secrets: make(map[Identifier]*memguard.Enclave)}
}

func (m *MemoryBackend) Read(ctx context.Context, id Identifier) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	enclave, ok := m.secrets[id]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// memguard refuses empty enclaves; an empty value is kept as nil.
	if enclave == nil {
		return "", nil
	}

	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening sealed %s: %w", id, err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

func (m *MemoryBackend) Write(ctx context.Context, id Identifier, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var enclave *memguard.Enclave
	if value != "" {
		// NewEnclave wipes its input, so hand it a private copy.
		enclave = memguard.NewEnclave([]byte(value))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[id] = enclave
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id Identifier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, id)
	return nil
}
