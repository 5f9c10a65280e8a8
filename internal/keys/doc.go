// Package keys implements the key hierarchy: address key -> share (vault)
// key -> item key.
//
// Every key below the address key is a PGP key pair whose serialized private
// key is encrypted to its parent. A key is only usable inside UsePrivateKey:
// the parent is unlocked just long enough to decrypt the child's material,
// which is moved into a memguard buffer, handed to the callback as a
// PrivateKey capability, and destroyed when the callback returns.
//
//	err := vaultKey.UsePrivateKey(keys.CryptoContext{PGP: p, Parent: address}, func(pk keys.PrivateKey) error {
//	    sig, err := pk.Sign(ciphertext)
//	    ...
//	})
//
// # Rotations
//
// Share keys are versioned by Rotation. A RotationSet indexes the keys of one
// share and its current key is the highest rotation. Keyring holds one set
// per share and replaces a set as a whole so readers never observe content
// tagged with a rotation whose key is missing.
package keys
