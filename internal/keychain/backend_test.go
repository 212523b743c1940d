package keychain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

// backendContract exercises behaviour every writable backend shares.
func backendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Read(ctx, UID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read before Write: expected ErrNotFound, got %v", err)
	}

	if err := b.Write(ctx, UID, "first"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Write(ctx, UID, "second"); err != nil {
		t.Fatalf("Write overwrite: %v", err)
	}
	if err := b.Write(ctx, Email, "sand@sand.com"); err != nil {
		t.Fatalf("Write email: %v", err)
	}

	got, err := b.Read(ctx, UID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "second" {
		t.Errorf("expected %q, got %q", "second", got)
	}

	if err := b.Delete(ctx, UID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, UID); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, err := b.Read(ctx, UID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read after Delete: expected ErrNotFound, got %v", err)
	}

	got, err = b.Read(ctx, Email)
	if err != nil {
		t.Fatalf("Read email: %v", err)
	}
	if got != "sand@sand.com" {
		t.Errorf("expected email to survive, got %q", got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := b.Write(cancelled, UID, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Write with cancelled context: expected context.Canceled, got %v", err)
	}
}

func TestMemoryBackend(t *testing.T) {
	backendContract(t, NewMemoryBackend())
}

func TestMemoryBackendEmptyValue(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	if err := b.Write(ctx, ScopedKey, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := b.Read(ctx, ScopedKey)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secrets.json")
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}

	backendContract(t, b)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %04o", info.Mode().Perm())
	}
}

func TestFileBackendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	ctx := context.Background()

	first, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if err := first.Write(ctx, ScopedKey, "key"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	second, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	got, err := second.Read(ctx, ScopedKey)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "key" {
		t.Errorf("expected %q, got %q", "key", got)
	}
}

func TestFileBackendRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(`{"uid":"x"}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	_, err = b.Read(context.Background(), UID)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected permission error, got %v", err)
	}
}

func TestNewFileBackendEmptyPath(t *testing.T) {
	if _, err := NewFileBackend(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestEnvBackend(t *testing.T) {
	t.Setenv("LOCKWISE_TEST_UID", "kjfdslkjsdflkjads")

	b, err := NewEnvBackend("LOCKWISE_TEST_")
	if err != nil {
		t.Fatalf("NewEnvBackend: %v", err)
	}
	ctx := context.Background()

	got, err := b.Read(ctx, UID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "kjfdslkjsdflkjads" {
		t.Errorf("expected uid from environment, got %q", got)
	}

	if _, err := b.Read(ctx, Email); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unset variable, got %v", err)
	}
	if err := b.Write(ctx, Email, "x"); err == nil {
		t.Error("expected Write to fail on read-only backend")
	}
	if err := b.Delete(ctx, UID); err == nil {
		t.Error("expected Delete to fail on read-only backend")
	}
}

func TestKeyringBackend(t *testing.T) {
	keyring.MockInit()

	b, err := NewKeyringBackend("lockwise-test")
	if err != nil {
		t.Fatalf("NewKeyringBackend: %v", err)
	}

	backendContract(t, b)
}

func TestKeyringBackendUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("keychain locked"))
	t.Cleanup(keyring.MockInit)

	b, err := NewKeyringBackend("lockwise-test")
	if err != nil {
		t.Fatalf("NewKeyringBackend: %v", err)
	}
	ctx := context.Background()

	if err := b.Write(ctx, ScopedKey, "k"); err == nil {
		t.Error("expected Write to fail")
	}
	if _, err := b.Read(ctx, ScopedKey); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestNewKeyringBackendEmptyService(t *testing.T) {
	if _, err := NewKeyringBackend(""); err == nil {
		t.Error("expected error for empty service")
	}
}
