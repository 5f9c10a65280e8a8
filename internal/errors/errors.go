package errors

import "errors"

// Key errors indicate a private key could not be made usable.
var (
	// ErrKeyUnlock indicates a passphrase was wrong or the key store could not be read.
	ErrKeyUnlock = errors.New("failed to unlock private key")

	// ErrNoUsableKey indicates no key of the required rotation is available to the caller.
	ErrNoUsableKey = errors.New("no usable key for rotation")

	// ErrKeyNotFound indicates a key could not be located in the key store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists indicates a key is already stored under the requested id.
	ErrKeyExists = errors.New("key already exists")

	// ErrRotationRegression indicates a key set would move the current rotation backwards.
	ErrRotationRegression = errors.New("rotation is lower than the applied rotation")
)

// Cryptographic errors indicate content could not be decrypted or trusted.
var (
	// ErrDecryption indicates a wrong key, wrong tag, or corrupt ciphertext.
	ErrDecryption = errors.New("failed to decrypt")

	// ErrEncryption indicates content could not be encrypted.
	ErrEncryption = errors.New("failed to encrypt")

	// ErrSignatureVerification indicates a signature is missing or does not verify.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrUntrusted indicates content was rejected because its signature chain is incomplete.
	ErrUntrusted = errors.New("content is untrusted")

	// ErrInvalidKeyLength indicates a symmetric key has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid symmetric key length")

	// ErrUnsupportedFormat indicates serialized content uses an unknown format version.
	ErrUnsupportedFormat = errors.New("unsupported content format")

	// ErrMalformedContent indicates serialized content could not be parsed.
	ErrMalformedContent = errors.New("malformed content")
)

// Protocol errors indicate a request was rejected or could not be completed.
var (
	// ErrStaleRevision indicates an update was based on an outdated revision.
	ErrStaleRevision = errors.New("item revision is stale")

	// ErrInviteAccept indicates at least one invite key failed and nothing was applied.
	ErrInviteAccept = errors.New("failed to accept invite")

	// ErrInvalidRequest indicates a request DTO failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrShareNotFound indicates the share does not exist.
	ErrShareNotFound = errors.New("share not found")

	// ErrItemNotFound indicates the item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrInviteNotFound indicates the invite does not exist.
	ErrInviteNotFound = errors.New("invite not found")
)

// Workspace errors indicate issues with the local workspace.
var (
	// ErrWorkspaceNotInitialized indicates there is no .vaultkey directory.
	ErrWorkspaceNotInitialized = errors.New("workspace has not been initialized")

	// ErrWorkspaceAlreadyInitialized indicates a .vaultkey directory already exists.
	ErrWorkspaceAlreadyInitialized = errors.New("workspace has already been initialized")

	// ErrVaultNotFound indicates a vault name or id is not known to the workspace.
	ErrVaultNotFound = errors.New("vault not found in workspace")

	// ErrUserNotConfigured indicates the user config has no address key.
	ErrUserNotConfigured = errors.New("user has no address key configured")
)
