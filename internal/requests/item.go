package requests

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/encryption"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"

	"github.com/awnumar/memguard"
)

type CreateItemInput struct {
	// ItemID is generated when empty.
	ItemID   string
	VaultKey keys.VaultKey
	Address  keys.Unlocker
	Contents codec.ItemContents
}

type CreateItemResult struct {
	Request   CreateItemRequest
	ItemKey   keys.ItemKey
	KeyPacket keys.KeyPacket
}

// CreateItem generates an item key wrapped to the vault key, encrypts the
// contents under a fresh session key whose packet is wrapped to the vault
// key, and signs with the item key and the address key.
func (b *Builder) CreateItem(in CreateItemInput) (CreateItemResult, error) {
	itemID := in.ItemID
	if itemID == "" {
		itemID = uuid.NewString()
	}
	fail := func(err error) (CreateItemResult, error) {
		return CreateItemResult{}, fmt.Errorf("create item %s: %w", itemID, err)
	}
	if in.Address == nil {
		return fail(fmt.Errorf("no address key"))
	}

	itemKey, err := keys.GenerateItemKey(b.PGP, itemID, in.VaultKey)
	if err != nil {
		return fail(err)
	}

	sk, err := b.newSessionKey()
	if err != nil {
		return fail(err)
	}
	defer memguard.WipeBytes(sk.Key)

	packet, err := b.PGP.EncryptSessionKey(sk, in.VaultKey.PublicKey)
	if err != nil {
		return fail(err)
	}

	owner := itemKey.Bind(b.cc(in.VaultKey.Bind(b.cc(in.Address))))
	s, err := b.seal(sk, codec.EncodeItemContents(in.Contents), encryption.TagItemContent, owner, in.Address)
	if err != nil {
		return fail(err)
	}

	content, itemSig, addressSig := b.encode(s)
	req := CreateItemRequest{
		ItemID:               itemID,
		ItemKey:              b.PGP.Base64Encode(itemKey.EncryptedKey),
		ItemKeyPublic:        itemKey.PublicKey,
		KeyRotation:          in.VaultKey.Rotation,
		Content:              content,
		ContentFormatVersion: int(codec.FormatVersion),
		KeyPacket:            b.PGP.Base64Encode(packet),
		ItemKeySignature:     itemSig,
		AddressSignature:     addressSig,
	}
	if err := b.check(req); err != nil {
		return fail(err)
	}

	return CreateItemResult{
		Request:   req,
		ItemKey:   itemKey,
		KeyPacket: keys.KeyPacket{RotationID: in.VaultKey.Rotation, KeyPacket: packet},
	}, nil
}

type UpdateItemInput struct {
	// VaultKey is the current rotation of the item's vault.
	VaultKey  keys.VaultKey
	ItemKey   keys.ItemKey
	KeyPacket keys.KeyPacket
	Address   keys.Unlocker
	Contents  codec.ItemContents
	// LastRevision is the revision the update is based on.
	LastRevision int64
}

// UpdateItem re-encrypts new contents under the item's existing session key
// and attaches the rotation and LastRevision so the server can reject stale
// writes. It never retries.
func (b *Builder) UpdateItem(in UpdateItemInput) (UpdateItemRequest, error) {
	fail := func(err error) (UpdateItemRequest, error) {
		return UpdateItemRequest{}, fmt.Errorf("update item %s: %w", in.ItemKey.ItemID, err)
	}
	if in.Address == nil {
		return fail(fmt.Errorf("no address key"))
	}
	if in.ItemKey.Rotation != in.VaultKey.Rotation {
		return fail(fmt.Errorf("%w: item key is rotation %d, vault key is rotation %d",
			kerrors.ErrNoUsableKey, in.ItemKey.Rotation, in.VaultKey.Rotation))
	}

	plain := codec.EncodeItemContents(in.Contents)

	sk, err := in.VaultKey.OpenKeyPacket(b.cc(in.Address), in.KeyPacket)
	if err != nil {
		return fail(err)
	}
	defer memguard.WipeBytes(sk.Key)

	owner := in.ItemKey.Bind(b.cc(in.VaultKey.Bind(b.cc(in.Address))))
	s, err := b.seal(sk, plain, encryption.TagItemContent, owner, in.Address)
	if err != nil {
		return fail(err)
	}

	content, itemSig, addressSig := b.encode(s)
	req := UpdateItemRequest{
		ItemID:               in.ItemKey.ItemID,
		KeyRotation:          in.VaultKey.Rotation,
		LastRevision:         in.LastRevision,
		Content:              content,
		ContentFormatVersion: int(codec.FormatVersion),
		ItemKeySignature:     itemSig,
		AddressSignature:     addressSig,
	}
	if err := b.check(req); err != nil {
		return fail(err)
	}

	b.Log.Debugf("built update of item %s on revision %d", req.ItemID, req.LastRevision)
	return req, nil
}

// ItemContent is the encrypted body of an item as stored remotely.
type ItemContent struct {
	Content              string `json:"content"`
	ContentFormatVersion int    `json:"contentFormatVersion"`
	ItemKeySignature     string `json:"itemKeySignature"`
	AddressSignature     string `json:"addressSignature"`
}

func (r CreateItemRequest) ContentOf() ItemContent {
	return ItemContent{
		Content:              r.Content,
		ContentFormatVersion: r.ContentFormatVersion,
		ItemKeySignature:     r.ItemKeySignature,
		AddressSignature:     r.AddressSignature,
	}
}

func (r UpdateItemRequest) ContentOf() ItemContent {
	return ItemContent{
		Content:              r.Content,
		ContentFormatVersion: r.ContentFormatVersion,
		ItemKeySignature:     r.ItemKeySignature,
		AddressSignature:     r.AddressSignature,
	}
}

type OpenItemInput struct {
	VaultKey  keys.VaultKey
	ItemKey   keys.ItemKey
	KeyPacket keys.KeyPacket
	Address   keys.Unlocker
	Content   ItemContent
	// SignerPublicKey is the address key of the last writer.
	SignerPublicKey keys.ArmoredPublicKey
}

// OpenItem verifies the item key and address signatures and then decrypts
// and decodes the contents.
func (b *Builder) OpenItem(in OpenItemInput) (codec.ItemContents, error) {
	env := envelope{
		what:          "item " + in.ItemKey.ItemID,
		content:       in.Content.Content,
		formatVersion: in.Content.ContentFormatVersion,
		ownerSig:      in.Content.ItemKeySignature,
		addressSig:    in.Content.AddressSignature,
	}
	plain, err := b.open(env, in.ItemKey.PublicKey, in.SignerPublicKey, encryption.TagItemContent, func() (pgp.SessionKey, error) {
		return in.VaultKey.OpenKeyPacket(b.cc(in.Address), in.KeyPacket)
	})
	if err != nil {
		return codec.ItemContents{}, err
	}
	return codec.DecodeItemContents(plain)
}

type RewrapItemKeyInput struct {
	OldVaultKey keys.VaultKey
	NewVaultKey keys.VaultKey
	Address     keys.Unlocker
	ItemKey     keys.ItemKey
	KeyPacket   keys.KeyPacket
}

// RewrapItemKey moves an item key and its content key packet from the old
// vault rotation to the new one. The content ciphertext and its signatures
// stay valid.
func (b *Builder) RewrapItemKey(in RewrapItemKeyInput) (keys.ItemKey, keys.KeyPacket, error) {
	fail := func(err error) (keys.ItemKey, keys.KeyPacket, error) {
		return keys.ItemKey{}, keys.KeyPacket{}, fmt.Errorf("rewrap item %s to rotation %d: %w", in.ItemKey.ItemID, in.NewVaultKey.Rotation, err)
	}
	if in.ItemKey.Rotation != in.OldVaultKey.Rotation {
		return fail(fmt.Errorf("%w: item key is rotation %d", kerrors.ErrNoUsableKey, in.ItemKey.Rotation))
	}

	oldVault := in.OldVaultKey.Bind(b.cc(in.Address))

	var wrapped []byte
	err := oldVault.UsePrivateKey(func(pk keys.PrivateKey) error {
		material, err := pk.Decrypt(in.ItemKey.EncryptedKey, "")
		if err != nil {
			return err
		}
		defer memguard.WipeBytes(material)
		wrapped, err = b.PGP.Encrypt(material, in.NewVaultKey.PublicKey, nil)
		return err
	})
	if err != nil {
		return fail(err)
	}

	sk, err := in.OldVaultKey.OpenKeyPacket(b.cc(in.Address), in.KeyPacket)
	if err != nil {
		return fail(err)
	}
	defer memguard.WipeBytes(sk.Key)

	packet, err := b.PGP.EncryptSessionKey(sk, in.NewVaultKey.PublicKey)
	if err != nil {
		return fail(err)
	}

	item := in.ItemKey
	item.Rotation = in.NewVaultKey.Rotation
	item.EncryptedKey = wrapped
	return item, keys.KeyPacket{RotationID: in.NewVaultKey.Rotation, KeyPacket: packet}, nil
}
