package requests

import (
	"fmt"

	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/signature"

	"github.com/awnumar/memguard"
)

// ItemKeys is an item key with the key packet of its content.
type ItemKeys struct {
	ItemKey   keys.ItemKey
	KeyPacket keys.KeyPacket
}

type RotateVaultInput struct {
	Current keys.VaultKey
	Address keys.Unlocker
	// Vault is the current encrypted metadata and SignerPublicKey the
	// address key that signed it.
	Vault           VaultContent
	SignerPublicKey keys.ArmoredPublicKey
	Items           []ItemKeys
}

type RotateVaultResult struct {
	Request          RotateVaultRequest
	VaultKey         keys.VaultKey
	VaultKeyMaterial []byte
	// Vault is the metadata record under the new rotation, signed by the
	// new vault key and the rotating user's address key.
	Vault VaultContent
	Items []ItemKeys
}

// RotateVault creates rotation Current+1 of the vault key and re-wraps the
// vault metadata packet and every item key and packet to it. Content is not
// re-encrypted: item content stays signed by its unchanged item key and the
// metadata ciphertext is re-signed once its current chain has verified. The
// caller applies the result as one update; the previous rotation must stay
// available until the server has accepted it.
func (b *Builder) RotateVault(in RotateVaultInput) (RotateVaultResult, error) {
	if in.Address == nil {
		return RotateVaultResult{}, fmt.Errorf("rotate vault %s: no address key", in.Current.ShareID)
	}

	if _, err := b.OpenVault(OpenVaultInput{
		VaultKey:        in.Current,
		Address:         in.Address,
		Content:         in.Vault,
		SignerPublicKey: in.SignerPublicKey,
	}); err != nil {
		return RotateVaultResult{}, fmt.Errorf("rotate vault %s: %w", in.Current.ShareID, err)
	}

	next, material, err := keys.GenerateShareKey(b.PGP, in.Current.ShareID, in.Current.Rotation+1, in.Address.PublicKey())
	if err != nil {
		return RotateVaultResult{}, err
	}
	fail := func(err error) (RotateVaultResult, error) {
		memguard.WipeBytes(material)
		return RotateVaultResult{}, fmt.Errorf("rotate vault %s to rotation %d: %w", in.Current.ShareID, next.Rotation, err)
	}

	oldPacket, err := b.PGP.Base64Decode(in.Vault.KeyPacket)
	if err != nil {
		return fail(err)
	}
	sk, err := in.Current.OpenKeyPacket(b.cc(in.Address), keys.KeyPacket{RotationID: in.Vault.KeyRotation, KeyPacket: oldPacket})
	if err != nil {
		return fail(err)
	}
	packet, err := b.PGP.EncryptSessionKey(sk, next.PublicKey)
	memguard.WipeBytes(sk.Key)
	if err != nil {
		return fail(err)
	}

	ct, err := b.PGP.Base64Decode(in.Vault.Content)
	if err != nil {
		return fail(err)
	}
	sigs, err := signature.Sign(ct, next.Bind(b.cc(in.Address)), in.Address)
	if err != nil {
		return fail(err)
	}

	vault := VaultContent{
		Content:              in.Vault.Content,
		ContentFormatVersion: in.Vault.ContentFormatVersion,
		KeyPacket:            b.PGP.Base64Encode(packet),
		KeyRotation:          next.Rotation,
		VaultKeySignature:    b.PGP.Base64Encode(sigs.Owner),
		AddressSignature:     b.PGP.Base64Encode(sigs.Address),
	}
	result := RotateVaultResult{
		VaultKey:         next,
		VaultKeyMaterial: material,
		Vault:            vault,
		Items:            make([]ItemKeys, len(in.Items)),
	}
	req := RotateVaultRequest{
		ShareID:           next.ShareID,
		EncryptedVaultKey: b.PGP.Base64Encode(next.EncryptedKey),
		VaultKeyPublic:    next.PublicKey,
		KeyRotation:       next.Rotation,
		VaultKeyPacket:    vault.KeyPacket,
		VaultKeySignature: vault.VaultKeySignature,
		AddressSignature:  vault.AddressSignature,
		Items:             make([]RotatedItemKey, len(in.Items)),
	}

	for i, it := range in.Items {
		itemKey, itemPacket, err := b.RewrapItemKey(RewrapItemKeyInput{
			OldVaultKey: in.Current,
			NewVaultKey: next,
			Address:     in.Address,
			ItemKey:     it.ItemKey,
			KeyPacket:   it.KeyPacket,
		})
		if err != nil {
			return fail(err)
		}
		result.Items[i] = ItemKeys{ItemKey: itemKey, KeyPacket: itemPacket}
		req.Items[i] = RotatedItemKey{
			ItemID:    itemKey.ItemID,
			ItemKey:   b.PGP.Base64Encode(itemKey.EncryptedKey),
			KeyPacket: b.PGP.Base64Encode(itemPacket.KeyPacket),
		}
	}

	if err := b.check(req); err != nil {
		return fail(err)
	}
	result.Request = req

	b.Log.Infof("rotated vault %s to rotation %d, %d items re-wrapped", next.ShareID, next.Rotation, len(in.Items))
	return result, nil
}
