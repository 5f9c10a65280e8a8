package requests

import (
	"testing"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/encryption"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Decrypting everything by hand, starting from the address private key,
// recovers the metadata the vault was created with.
func TestCreateVaultFinanceBills(t *testing.T) {
	f := newVaultFixture(t)
	p := f.b.PGP
	req := f.vault.Request

	assert.Equal(t, int64(0), req.KeyRotation)
	assert.Equal(t, "addr-alice", req.AddressID)
	assert.NotEmpty(t, req.ShareID)

	encryptedVaultKey, err := p.Base64Decode(req.EncryptedVaultKey)
	require.NoError(t, err)
	vaultMaterial, err := p.Decrypt(encryptedVaultKey, f.address.pair.PrivateKey, "")
	require.NoError(t, err)
	assert.Equal(t, f.vault.VaultKeyMaterial, vaultMaterial)

	packet, err := p.Base64Decode(req.KeyPacket)
	require.NoError(t, err)
	sk, err := p.DecryptSessionKey(packet, vaultMaterial)
	require.NoError(t, err)

	ct, err := p.Base64Decode(req.Content)
	require.NoError(t, err)
	var plain []byte
	require.NoError(t, encryption.WithKey(sk.Key, func(c *encryption.Context) error {
		plain, err = c.Decrypt(ct, encryption.TagVaultContent)
		return err
	}))

	meta, err := codec.DecodeVaultMetadata(plain)
	require.NoError(t, err)
	assert.Equal(t, "Finance", meta.Name)
	assert.Equal(t, "Bills", meta.Description)

	vaultSig, err := p.Base64Decode(req.VaultKeySignature)
	require.NoError(t, err)
	addressSig, err := p.Base64Decode(req.AddressSignature)
	require.NoError(t, err)
	require.NoError(t, p.Verify(ct, vaultSig, req.VaultKeyPublic))
	require.NoError(t, p.Verify(ct, addressSig, f.address.PublicKey()))
}

func TestOpenVault(t *testing.T) {
	f := newVaultFixture(t)

	meta, err := f.b.OpenVault(OpenVaultInput{
		VaultKey:        f.vault.VaultKey,
		Address:         f.address,
		Content:         f.vault.Request.ContentOf(),
		SignerPublicKey: f.address.PublicKey(),
	})
	require.NoError(t, err)
	assert.Equal(t, codec.VaultMetadata{Name: "Finance", Description: "Bills"}, meta)
}

func TestOpenVaultSignatureGating(t *testing.T) {
	f := newVaultFixture(t)
	mallory := newAddress(t, f.b.PGP, "mallory@example.com")

	other, err := f.b.CreateVault(CreateVaultInput{
		AddressID: "addr-mallory",
		Address:   mallory,
		Metadata:  codec.VaultMetadata{Name: "Finance", Description: "Bills"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*VaultContent)
		signer  keys.ArmoredPublicKey
		wantErr error
	}{
		{"foreign address signature", func(c *VaultContent) { c.AddressSignature = other.Request.AddressSignature }, f.address.PublicKey(), kerrors.ErrUntrusted},
		{"foreign vault key signature", func(c *VaultContent) { c.VaultKeySignature = other.Request.VaultKeySignature }, f.address.PublicKey(), kerrors.ErrUntrusted},
		{"missing address signature", func(c *VaultContent) { c.AddressSignature = "" }, f.address.PublicKey(), kerrors.ErrUntrusted},
		{"undecodable signature", func(c *VaultContent) { c.VaultKeySignature = "%%%" }, f.address.PublicKey(), kerrors.ErrUntrusted},
		{"unexpected signer", func(*VaultContent) {}, mallory.PublicKey(), kerrors.ErrUntrusted},
		{"unknown format", func(c *VaultContent) { c.ContentFormatVersion = 9 }, f.address.PublicKey(), kerrors.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := f.vault.Request.ContentOf()
			tt.mutate(&content)

			_, err := f.b.OpenVault(OpenVaultInput{
				VaultKey:        f.vault.VaultKey,
				Address:         f.address,
				Content:         content,
				SignerPublicKey: tt.signer,
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenVaultWithoutAccess(t *testing.T) {
	f := newVaultFixture(t)
	bob := newAddress(t, f.b.PGP, "bob@example.com")

	_, err := f.b.OpenVault(OpenVaultInput{
		VaultKey:        f.vault.VaultKey,
		Address:         bob,
		Content:         f.vault.Request.ContentOf(),
		SignerPublicKey: f.address.PublicKey(),
	})
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
}

func TestCreateVaultRequiresAddress(t *testing.T) {
	_, err := newBuilder().CreateVault(CreateVaultInput{Metadata: codec.VaultMetadata{Name: "x"}})
	assert.Error(t, err)
}
