// Package workflows provides high-level orchestration for vaultkey commands.
//
// Workflows coordinate configuration, the key store, the repository and the
// audit log to implement complete user-facing features. Each workflow
// handles a single command's business logic, independent of CLI concerns
// like flag parsing, spinners, and output formatting.
//
// # Available Workflows
//
//   - Init: creates a workspace in the current directory
//   - KeysGenerate: creates the user's passphrase-locked address key
//   - VaultCreate, VaultOpen, VaultRotate: manage vaults
//   - ItemCreate, ItemOpen, ItemUpdate: manage items in a vault
//   - InviteEncrypt, InviteAccept: share a vault with another address
//   - Log: reads the audit log
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package. Use
// errors.Is for specific conditions and errors.Classify to decide between
// retrying, reporting an item as unavailable, or raising a security alert:
//
//	result, err := workflows.ItemOpen(ctx, opts)
//	if kerrors.Classify(err) == kerrors.KindSecurity {
//	    // Content failed verification; it has been recorded in the audit log.
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
package workflows
