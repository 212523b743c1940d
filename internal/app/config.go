package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/lockwise/internal/keychain"
	"github.com/florianilch/lockwise/internal/server"
	"github.com/florianilch/lockwise/internal/settings"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTel LogFormat = "otel"
	LogFormatOTLP LogFormat = "otlp"
	// LogFormatOTLPGRPC ships logs over gRPC instead of HTTP.
	LogFormatOTLPGRPC LogFormat = "otlp-grpc"
)

// KeychainStorageType represents the backends supported for account secrets.
type KeychainStorageType string

const (
	KeychainStorageTypeFile    KeychainStorageType = "file"
	KeychainStorageTypeEnv     KeychainStorageType = "env"
	KeychainStorageTypeKeyring KeychainStorageType = "keyring"
	KeychainStorageTypeMemory  KeychainStorageType = "memory"
)

// Default configuration values
const (
	DefaultConfigLogFormat            = LogFormatText
	DefaultConfigServerHost           = "127.0.0.1"
	DefaultConfigServerPort           = 4100
	DefaultConfigServerActionRate     = float64(server.DefaultActionRate)
	DefaultConfigServerActionBurst    = server.DefaultActionBurst
	DefaultConfigShutdownTimeout      = 5 * time.Second
	DefaultConfigKeychainStorage      = KeychainStorageTypeFile
	DefaultConfigKeychainService      = "lockwise"
	DefaultConfigKeychainEnvPrefix    = "LOCKWISE_SECRET_"
	DefaultConfigKeychainTimeout      = keychain.DefaultTimeout
	DefaultConfigOAuthTokenURL        = "https://oauth.accounts.firefox.com/v1/token"
	DefaultConfigOAuthRefreshInterval = 30 * time.Minute
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type

	// ActionRate is the number of actions accepted per second, ActionBurst the bucket size.
	ActionRate  float64 `json:"action_rate" validate:"gte=0"`
	ActionBurst int     `json:"action_burst" validate:"gte=0"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// KeychainConfig describes where account secrets are persisted.
type KeychainConfig struct {
	Storage KeychainStorageType `json:"storage" validate:"required,oneof=file env keyring memory"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File      string `json:"file,omitempty"`       // For file storage: path to secrets file
	EnvPrefix string `json:"env_prefix,omitempty"` // For env storage: variable name prefix
	Service   string `json:"service,omitempty"`    // For keyring storage: service name

	// Timeout bounds each backend call.
	Timeout time.Duration `json:"timeout"`
}

// NewBackend creates a keychain Backend from the configuration.
func (k *KeychainConfig) NewBackend() (keychain.Backend, error) {
	switch k.Storage {
	case KeychainStorageTypeFile:
		return keychain.NewFileBackend(k.File)
	case KeychainStorageTypeEnv:
		return keychain.NewEnvBackend(k.EnvPrefix)
	case KeychainStorageTypeKeyring:
		return keychain.NewKeyringBackend(k.Service)
	case KeychainStorageTypeMemory:
		return keychain.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", k.Storage)
	}
}

// NewManager creates a keychain Manager over the configured backend.
func (k *KeychainConfig) NewManager() (*keychain.Manager, error) {
	backend, err := k.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to create keychain backend: %w", err)
	}
	return keychain.NewManager(backend, keychain.WithTimeout(k.Timeout))
}

// OAuthConfig controls background access token refresh.
type OAuthConfig struct {
	Enabled         bool          `json:"enabled"`
	ClientID        string        `json:"client_id" validate:"required_if=Enabled true"`
	TokenURL        string        `json:"token_url" validate:"required,url"`
	RefreshInterval time.Duration `json:"refresh_interval" validate:"gt=0"`
	// AccessTokenTTL requests an access token lifetime; zero uses the server default.
	AccessTokenTTL time.Duration `json:"access_token_ttl" validate:"gte=0"`
}

// SettingsConfig holds initial values for toggle settings.
type SettingsConfig struct {
	BiometricLogin bool `json:"biometric_login"`
	UsageData      bool `json:"usage_data"`
}

// Values returns a settings store seeded from the configuration.
func (s SettingsConfig) Values() *settings.MapValues {
	return settings.NewMapValues(map[string]bool{
		settings.KeyBiometricLogin: s.BiometricLogin,
		settings.KeyUsageData:      s.UsageData,
	})
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otel otlp otlp-grpc"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Keychain  KeychainConfig `json:"keychain"`
	OAuth     OAuthConfig    `json:"oauth"`
	Settings  SettingsConfig `json:"settings"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Server.ActionRate == 0 {
		c.Server.ActionRate = DefaultConfigServerActionRate
	}
	if c.Server.ActionBurst == 0 {
		c.Server.ActionBurst = DefaultConfigServerActionBurst
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Keychain.Storage == "" {
		c.Keychain.Storage = DefaultConfigKeychainStorage
	}
	if c.Keychain.Timeout == 0 {
		c.Keychain.Timeout = DefaultConfigKeychainTimeout
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = DefaultConfigOAuthTokenURL
	}
	if c.OAuth.RefreshInterval == 0 {
		c.OAuth.RefreshInterval = DefaultConfigOAuthRefreshInterval
	}

	// Dynamic defaults based on storage type
	switch c.Keychain.Storage {
	case KeychainStorageTypeFile:
		if c.Keychain.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("keychain.file required (auto-detect failed: %w)", err)
			}
			c.Keychain.File = filepath.Join(configDir, "lockwise", "secrets.json")
		}
	case KeychainStorageTypeKeyring:
		if c.Keychain.Service == "" {
			c.Keychain.Service = DefaultConfigKeychainService
		}
	case KeychainStorageTypeEnv:
		if c.Keychain.EnvPrefix == "" {
			c.Keychain.EnvPrefix = DefaultConfigKeychainEnvPrefix
		}
	case KeychainStorageTypeMemory:
		// nothing to configure
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Refreshed tokens must be written back (env is read-only)
	if c.OAuth.Enabled && c.Keychain.Storage == KeychainStorageTypeEnv {
		return errors.New("oauth refresh requires writable storage, env is read-only")
	}

	switch c.Keychain.Storage {
	case KeychainStorageTypeFile:
		if c.Keychain.File == "" {
			return errors.New("file path required for file storage")
		}
	case KeychainStorageTypeEnv:
		if c.Keychain.EnvPrefix == "" {
			return errors.New("env_prefix required for env storage")
		}
	case KeychainStorageTypeKeyring:
		if c.Keychain.Service == "" {
			return errors.New("service required for keyring storage")
		}
	}

	return nil
}
