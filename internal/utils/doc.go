// Package utils provides shared helpers for the vaultkey CLI.
//
// # Filesystem Utilities
//
//   - FindWorkspaceRoot: walks up directories to find .vaultkey
//   - WriteFileAtomic: temp file + rename, used for every persisted record
//   - FormatPaths: lists file paths, used for what init creates
//
// # System Utilities
//
//   - GetUsername, GetHostname: default key names
//
// # I/O and Terminal Utilities
//
//   - ReadStdin: reads piped invite payloads, refusing a terminal
//   - ResolvePassphrase: VAULTKEY_PASSPHRASE or a hidden prompt
package utils
