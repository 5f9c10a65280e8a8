package requests

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/encryption"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"

	"github.com/awnumar/memguard"
)

type CreateVaultInput struct {
	AddressID string
	// Address is the creating user's address key.
	Address  keys.Unlocker
	Metadata codec.VaultMetadata
	// ShareID is generated when empty.
	ShareID string
}

type CreateVaultResult struct {
	Request  CreateVaultRequest
	VaultKey keys.VaultKey
	// VaultKeyMaterial is the plaintext serialized vault key for local
	// caching. It is never part of Request and must be wiped by the caller.
	VaultKeyMaterial []byte
	KeyPacket        keys.KeyPacket
}

// CreateVault generates the rotation 0 vault key, encrypts the metadata
// under a fresh session key tagged VaultContent and signs the ciphertext
// with both the vault key and the address key.
func (b *Builder) CreateVault(in CreateVaultInput) (CreateVaultResult, error) {
	if in.Address == nil {
		return CreateVaultResult{}, fmt.Errorf("create vault: no address key")
	}
	shareID := in.ShareID
	if shareID == "" {
		shareID = uuid.NewString()
	}

	vaultKey, material, err := keys.GenerateShareKey(b.PGP, shareID, 0, in.Address.PublicKey())
	if err != nil {
		return CreateVaultResult{}, err
	}
	fail := func(err error) (CreateVaultResult, error) {
		memguard.WipeBytes(material)
		return CreateVaultResult{}, fmt.Errorf("create vault %s: %w", shareID, err)
	}

	plain := codec.EncodeVaultMetadata(in.Metadata)

	sk, err := b.newSessionKey()
	if err != nil {
		return fail(err)
	}
	defer memguard.WipeBytes(sk.Key)

	packet, err := b.PGP.EncryptSessionKey(sk, vaultKey.PublicKey)
	if err != nil {
		return fail(err)
	}

	s, err := b.seal(sk, plain, encryption.TagVaultContent, vaultKey.Bind(b.cc(in.Address)), in.Address)
	if err != nil {
		return fail(err)
	}

	content, vaultSig, addressSig := b.encode(s)
	req := CreateVaultRequest{
		AddressID:            in.AddressID,
		ShareID:              shareID,
		EncryptedVaultKey:    b.PGP.Base64Encode(vaultKey.EncryptedKey),
		VaultKeyPublic:       vaultKey.PublicKey,
		Content:              content,
		ContentFormatVersion: int(codec.FormatVersion),
		KeyPacket:            b.PGP.Base64Encode(packet),
		VaultKeySignature:    vaultSig,
		AddressSignature:     addressSig,
		KeyRotation:          vaultKey.Rotation,
	}
	if err := b.check(req); err != nil {
		return fail(err)
	}

	b.Log.Debugf("built vault %s at rotation %d", shareID, vaultKey.Rotation)
	return CreateVaultResult{
		Request:          req,
		VaultKey:         vaultKey,
		VaultKeyMaterial: material,
		KeyPacket:        keys.KeyPacket{RotationID: vaultKey.Rotation, KeyPacket: packet},
	}, nil
}

// VaultContent is the encrypted metadata of a vault as stored remotely.
type VaultContent struct {
	Content              string `json:"content"`
	ContentFormatVersion int    `json:"contentFormatVersion"`
	KeyPacket            string `json:"keyPacket"`
	KeyRotation          int64  `json:"keyRotation"`
	VaultKeySignature    string `json:"vaultKeySignature"`
	AddressSignature     string `json:"addressSignature"`
}

// ContentOf returns the encrypted metadata carried by a create request.
func (r CreateVaultRequest) ContentOf() VaultContent {
	return VaultContent{
		Content:              r.Content,
		ContentFormatVersion: r.ContentFormatVersion,
		KeyPacket:            r.KeyPacket,
		KeyRotation:          r.KeyRotation,
		VaultKeySignature:    r.VaultKeySignature,
		AddressSignature:     r.AddressSignature,
	}
}

type OpenVaultInput struct {
	VaultKey keys.VaultKey
	// Address is the reader's address key, the parent of VaultKey.
	Address keys.Unlocker
	Content VaultContent
	// SignerPublicKey is the address key that signed the content.
	SignerPublicKey keys.ArmoredPublicKey
}

// OpenVault verifies and decrypts vault metadata. Content signed by anything
// other than the vault key and SignerPublicKey is rejected as untrusted.
func (b *Builder) OpenVault(in OpenVaultInput) (codec.VaultMetadata, error) {
	packet, err := b.PGP.Base64Decode(in.Content.KeyPacket)
	if err != nil {
		return codec.VaultMetadata{}, fmt.Errorf("vault key packet: %w", err)
	}

	env := envelope{
		what:          "vault " + in.VaultKey.ShareID,
		content:       in.Content.Content,
		formatVersion: in.Content.ContentFormatVersion,
		ownerSig:      in.Content.VaultKeySignature,
		addressSig:    in.Content.AddressSignature,
	}
	plain, err := b.open(env, in.VaultKey.PublicKey, in.SignerPublicKey, encryption.TagVaultContent, func() (pgp.SessionKey, error) {
		return in.VaultKey.OpenKeyPacket(b.cc(in.Address), keys.KeyPacket{RotationID: in.Content.KeyRotation, KeyPacket: packet})
	})
	if err != nil {
		return codec.VaultMetadata{}, err
	}
	return codec.DecodeVaultMetadata(plain)
}
