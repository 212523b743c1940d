package settings

import "sync"

// Setting keys.
const (
	KeyBiometricLogin = "biometric_login"
	KeyUsageData      = "usage_data"
)

// Values is the key-value store backing toggle settings.
type Values interface {
	Bool(key string) bool
	SetBool(key string, value bool)
	// Toggle flips key atomically and returns the new value.
	Toggle(key string) bool
}

// MapValues is an in-memory Values seeded with defaults.
type MapValues struct {
	mu     sync.RWMutex
	values map[string]bool
}

// Compile-time check to ensure MapValues implements Values
var _ Values = (*MapValues)(nil)

// NewMapValues creates a MapValues holding a copy of defaults.
func NewMapValues(defaults map[string]bool) *MapValues {
	values := make(map[string]bool, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &MapValues{values: values}
}

func (m *MapValues) Bool(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

func (m *MapValues) SetBool(key string, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MapValues) Toggle(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = !m.values[key]
	return m.values[key]
}
