// Package encryption implements the tag-bound symmetric encryption context
// used for all bulk content.
//
// Each Tag derives its own ChaCha20-Poly1305 subkey from the raw key with
// HKDF-SHA256 and is also bound as additional data, so a vault-content
// ciphertext can never be opened as item content even under the same key.
//
// Raw keys only live in memguard buffers. WithKey is the scoped form for
// session keys recovered from key packets; Provider is the long-lived form
// used for the device key that protects the local key cache.
package encryption
