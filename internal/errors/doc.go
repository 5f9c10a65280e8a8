// Package errors provides typed error values for vaultkey.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. Every
// cryptographic failure in the core packages wraps one of these values, so a
// caller can tell "retry" from "permanently unavailable" from "security
// violation requiring audit" without inspecting messages.
//
// # Error Categories
//
//   - Key errors: ErrKeyUnlock, ErrNoUsableKey, ErrKeyNotFound
//   - Crypto errors: ErrDecryption, ErrSignatureVerification, ErrUntrusted
//   - Protocol errors: ErrStaleRevision, ErrInviteAccept, ErrInvalidRequest
//   - Workspace errors: ErrWorkspaceNotInitialized, ErrUserNotConfigured
//
// # Classification
//
// Classify folds the taxonomy into three actionable kinds:
//
//	switch kerrors.Classify(err) {
//	case kerrors.KindRetry:       // re-prompt for the passphrase or refetch
//	case kerrors.KindUnavailable: // show the item as unavailable
//	case kerrors.KindSecurity:    // reject and record a security event
//	}
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("opening item %s: %w", itemID, errors.ErrDecryption)
package errors
