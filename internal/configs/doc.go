// Package configs manages user and workspace configuration for vaultkey.
//
// Configuration is stored in TOML format at two levels:
//
//   - User config: <config dir>/vaultkey/config.toml (identity, KDF parameters)
//   - Workspace config: .vaultkey/config.toml (workspace identity, vault index)
//
// # User Configuration
//
// The [user] table stores the email, a UUID generated on first use and the
// address id of the user's key in the key store. The [kdf] table holds the
// Argon2id parameters of the device key; unset values fall back to
// DefaultKDF.
//
// # Workspace Configuration
//
// The [vaults] table maps share ids to a display name and the last applied
// rotation, so commands can take a vault name instead of an id.
//
// # Settings
//
// Global settings are initialized at startup:
//   - UserVaultkeySettings: paths to the user config and keys directories
//   - WorkspaceVaultkeySettings: the current workspace's paths
//
// Call InitWorkspaceSettings() before accessing WorkspaceVaultkeySettings.
// It walks up the directory tree to find the nearest .vaultkey directory and
// reads VAULTKEY_* overrides from .vaultkey/.env.
package configs
