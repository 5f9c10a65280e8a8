package keys

import (
	"fmt"
	"time"

	"github.com/PolarWolf314/vaultkey/internal/pgp"

	"github.com/awnumar/memguard"
)

// GenerateShareKey creates rotation of shareID with its private material
// encrypted to owner. The plaintext material is returned for local caching;
// the caller must wipe it.
func GenerateShareKey(p pgp.Provider, shareID string, rotation int64, owner ArmoredPublicKey) (ShareKey, []byte, error) {
	pair, err := p.GenerateKey("share "+shareID, "")
	if err != nil {
		return ShareKey{}, nil, fmt.Errorf("generating share key: %w", err)
	}

	encrypted, err := p.Encrypt(pair.PrivateKey, owner, nil)
	if err != nil {
		memguard.WipeBytes(pair.PrivateKey)
		return ShareKey{}, nil, fmt.Errorf("wrapping share key: %w", err)
	}

	return ShareKey{
		ShareID:      shareID,
		Rotation:     rotation,
		PublicKey:    pair.PublicKey,
		EncryptedKey: encrypted,
		CreateTime:   time.Now().UTC(),
	}, pair.PrivateKey, nil
}

// GenerateItemKey creates the key of itemID wrapped to vaultKey.
func GenerateItemKey(p pgp.Provider, itemID string, vaultKey VaultKey) (ItemKey, error) {
	pair, err := p.GenerateKey("item "+itemID, "")
	if err != nil {
		return ItemKey{}, fmt.Errorf("generating item key: %w", err)
	}
	defer memguard.WipeBytes(pair.PrivateKey)

	encrypted, err := p.Encrypt(pair.PrivateKey, vaultKey.PublicKey, nil)
	if err != nil {
		return ItemKey{}, fmt.Errorf("wrapping item key: %w", err)
	}

	return ItemKey{
		ItemID:       itemID,
		Rotation:     vaultKey.Rotation,
		PublicKey:    pair.PublicKey,
		EncryptedKey: encrypted,
	}, nil
}

// Rewrap re-encrypts the private material of k to newOwner, e.g. after the
// user's address key was replaced. The rotation is unchanged.
func (k ShareKey) Rewrap(cc CryptoContext, newOwner ArmoredPublicKey) (ShareKey, error) {
	var material []byte
	err := cc.Parent.UsePrivateKey(func(parent PrivateKey) error {
		var err error
		material, err = parent.Decrypt(k.EncryptedKey, "")
		return err
	})
	if err != nil {
		return ShareKey{}, fmt.Errorf("unwrapping share %s rotation %d: %w", k.ShareID, k.Rotation, err)
	}
	defer memguard.WipeBytes(material)

	encrypted, err := cc.PGP.Encrypt(material, newOwner, nil)
	if err != nil {
		return ShareKey{}, fmt.Errorf("rewrapping share %s rotation %d: %w", k.ShareID, k.Rotation, err)
	}

	out := k
	out.EncryptedKey = encrypted
	return out, nil
}
