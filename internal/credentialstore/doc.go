// Package credentialstore persists connection secrets, keyed by a connection's credentials URI.
//
// Supports two storage backends with different security and deployment tradeoffs:
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager,
//     Linux Secret Service) through an injected SecretService
//   - File: a single JSON file mapping URI to ciphertext, encrypted with a per-user key;
//     only token credentials can be stored
//
// Loader selects one backend at call time from the configured preference and degrades
// failures to logged no-ops, so callers never handle backend errors themselves.
package credentialstore
