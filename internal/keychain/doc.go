// Package keychain persists small secrets addressed by a fixed identifier.
//
// Supports four storage backends with different security and deployment tradeoffs:
//   - File: Local JSON file with atomic writes and secure permissions
//   - Env: Read-only environment variable access (every save fails)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Memory: Process-local storage for tests and throwaway sessions
//
// Manager adapts a Backend to the boolean save / optional retrieve contract
// used by the account state store: backend errors are logged and reported as
// a failed save or an absent value.
package keychain
