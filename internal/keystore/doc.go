// Package keystore stores the user's address keys on disk.
//
// Each address key lives in its own directory under the keys directory:
//
//	<keys dir>/<address id>/address.asc      passphrase-locked private key
//	<keys dir>/<address id>/address.pub.asc  public key
//	<keys dir>/<address id>/metadata.toml    email, device salt, KDF parameters
//
// Opening a key also derives the device key with Argon2id from the same
// passphrase. The device key seals local caches such as the share key
// cache and is only available after Open.
package keystore
