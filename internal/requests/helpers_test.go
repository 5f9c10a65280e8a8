package requests

import (
	"testing"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	logger "github.com/PolarWolf314/vaultkey/internal/logging"
	"github.com/PolarWolf314/vaultkey/internal/pgp"

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

func newAddress(t *testing.T, p pgp.Provider, email string) addressKey {
	t.Helper()
	pair, err := p.GenerateKey("user", email)
	require.NoError(t, err)
	return addressKey{p: p, pair: pair}
}

func newBuilder() *Builder {
	return NewBuilder(pgp.New(), logger.Discard())
}

func loginItem(name, password string) codec.ItemContents {
	return codec.ItemContents{
		Metadata: codec.ItemMetadata{Name: name, ItemUUID: "uuid-" + name},
		Content: codec.Login{
			Username: "alice",
			Password: password,
			URLs:     []string{"https://bank.example.com"},
		},
	}
}

// vaultFixture is a created vault with one item.
type vaultFixture struct {
	b       *Builder
	address addressKey
	vault   CreateVaultResult
	item    CreateItemResult
}

func newVaultFixture(t *testing.T) vaultFixture {
	t.Helper()
	b := newBuilder()
	address := newAddress(t, b.PGP, "alice@example.com")

	vault, err := b.CreateVault(CreateVaultInput{
		AddressID: "addr-alice",
		Address:   address,
		Metadata:  codec.VaultMetadata{Name: "Finance", Description: "Bills"},
	})
	require.NoError(t, err)

	item, err := b.CreateItem(CreateItemInput{
		VaultKey: vault.VaultKey,
		Address:  address,
		Contents: loginItem("Bank", "hunter2"),
	})
	require.NoError(t, err)

	return vaultFixture{b: b, address: address, vault: vault, item: item}
}
