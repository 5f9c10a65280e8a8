package repository

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/encryption"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	logger "github.com/PolarWolf314/vaultkey/internal/logging"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/requests"

	"github.com/stretchr/testify/require"
)

// addressKey is an address key held in plain memory, for tests only.
type addressKey struct {
	p    pgp.Provider
	pair pgp.KeyPair
}

func (a addressKey) UsePrivateKey(fn func(keys.PrivateKey) error) error {
	return keys.UseMaterial(a.p, append([]byte(nil), a.pair.PrivateKey...), a.pair.PublicKey, fn)
}

func (a addressKey) PublicKey() keys.ArmoredPublicKey { return a.pair.PublicKey }

var testPGP = pgp.New()

// newUser publishes a fresh address on remote and returns a repository for
// it with its own cache.
func newUser(t *testing.T, remote Remote, addressID string) *Repository {
	t.Helper()
	pair, err := testPGP.GenerateKey(addressID, addressID+"@example.com")
	require.NoError(t, err)
	address := addressKey{p: testPGP, pair: pair}

	require.NoError(t, remote.PutAddress(context.Background(), Address{
		AddressID: addressID,
		Email:     addressID + "@example.com",
		PublicKey: address.PublicKey(),
	}))
	return newDevice(t, remote, addressID, address)
}

// newDevice returns another session of an existing address.
func newDevice(t *testing.T, remote Remote, addressID string, address keys.Unlocker) *Repository {
	t.Helper()
	b := requests.NewBuilder(testPGP, logger.Discard())
	return New(remote, b, NewCache(t.TempDir()), addressID, address, logger.Discard())
}

func newDeviceKey(t *testing.T) *encryption.Provider {
	t.Helper()
	key := make([]byte, encryption.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	p, err := encryption.NewProvider(key)
	require.NoError(t, err)
	return p
}

func financeBills() codec.VaultMetadata {
	return codec.VaultMetadata{Name: "Finance", Description: "Bills"}
}

func note(text string) codec.ItemContents {
	return codec.ItemContents{
		Metadata: codec.ItemMetadata{Name: "Electricity", Note: text, ItemUUID: "uuid-electricity"},
		Content:  codec.Note{},
	}
}
