package keystore

import (
	"sync"

	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"

	"github.com/awnumar/memguard"
)

// AddressKey is an opened address key. It implements keys.Unlocker.
type AddressKey struct {
	ID string

	pgp    pgp.Provider
	public keys.ArmoredPublicKey

	mu      sync.RWMutex
	enclave *memguard.Enclave
}

func (a *AddressKey) UsePrivateKey(fn func(keys.PrivateKey) error) error {
	a.mu.RLock()
	enclave := a.enclave
	a.mu.RUnlock()

	return keys.UseEnclave(a.pgp, enclave, a.public, fn)
}

func (a *AddressKey) PublicKey() keys.ArmoredPublicKey {
	return a.public
}

// Close drops the sealed key. Later calls to UsePrivateKey fail with
// ErrKeyUnlock.
func (a *AddressKey) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enclave = nil
}
