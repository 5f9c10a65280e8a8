package keys

import (
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
)

// CryptoContext is what a key needs to unlock itself: the PGP primitives and
// the parent key its private material is encrypted to.
type CryptoContext struct {
	PGP    pgp.Provider
	Parent Unlocker
}

// ShareKey is one rotation of the key pair of a share. EncryptedKey is the
// serialized private key encrypted to the owner's address key; PublicKey is
// stored beside it so it can be read without unlocking anything.
type ShareKey struct {
	ShareID      string           `json:"shareId"`
	Rotation     int64            `json:"rotation"`
	PublicKey    ArmoredPublicKey `json:"publicKey"`
	EncryptedKey []byte           `json:"encryptedKey"`
	CreateTime   time.Time        `json:"createTime"`
}

// VaultKey is the ShareKey of a vault share. It wraps item keys and the
// session keys of vault and item content.
type VaultKey = ShareKey

// ItemKey is the key pair of one item. EncryptedKey is encrypted to the
// VaultKey of Rotation.
type ItemKey struct {
	ItemID       string           `json:"itemId"`
	Rotation     int64            `json:"rotation"`
	PublicKey    ArmoredPublicKey `json:"publicKey"`
	EncryptedKey []byte           `json:"encryptedKey"`
}

// KeyPacket is a session key encrypted to the key of RotationID.
type KeyPacket struct {
	RotationID int64  `json:"rotationId"`
	KeyPacket  []byte `json:"keyPacket"`
}

func (k ShareKey) KeyRotation() int64 { return k.Rotation }

// UsePrivateKey unlocks the share key for the duration of fn. The parent key
// is released before fn runs.
func (k ShareKey) UsePrivateKey(cc CryptoContext, fn func(PrivateKey) error) error {
	return usePrivateKey(cc, k.EncryptedKey, k.PublicKey, fmt.Sprintf("share %s rotation %d", k.ShareID, k.Rotation), fn)
}

// Bind returns an Unlocker for k, for use as the parent of item keys.
func (k ShareKey) Bind(cc CryptoContext) Unlocker {
	return boundKey{
		public: k.PublicKey,
		use: func(fn func(PrivateKey) error) error {
			return k.UsePrivateKey(cc, fn)
		},
	}
}

// OpenKeyPacket recovers the session key of packet. A packet of another
// rotation fails with ErrNoUsableKey without attempting decryption.
func (k ShareKey) OpenKeyPacket(cc CryptoContext, packet KeyPacket) (pgp.SessionKey, error) {
	if packet.RotationID != k.Rotation {
		return pgp.SessionKey{}, fmt.Errorf("%w: key packet is for rotation %d, key is rotation %d",
			kerrors.ErrNoUsableKey, packet.RotationID, k.Rotation)
	}

	var sk pgp.SessionKey
	err := k.UsePrivateKey(cc, func(pk PrivateKey) error {
		var err error
		sk, err = pk.DecryptSessionKey(packet.KeyPacket)
		return err
	})
	return sk, err
}

// UsePrivateKey unlocks the item key through its vault key.
func (k ItemKey) UsePrivateKey(cc CryptoContext, fn func(PrivateKey) error) error {
	return usePrivateKey(cc, k.EncryptedKey, k.PublicKey, fmt.Sprintf("item %s rotation %d", k.ItemID, k.Rotation), fn)
}

// Bind returns an Unlocker for k.
func (k ItemKey) Bind(cc CryptoContext) Unlocker {
	return boundKey{
		public: k.PublicKey,
		use: func(fn func(PrivateKey) error) error {
			return k.UsePrivateKey(cc, fn)
		},
	}
}

func usePrivateKey(cc CryptoContext, encrypted []byte, public ArmoredPublicKey, what string, fn func(PrivateKey) error) error {
	if cc.Parent == nil || cc.PGP == nil {
		return fmt.Errorf("%w: %s: no parent key", kerrors.ErrKeyUnlock, what)
	}

	var material []byte
	err := cc.Parent.UsePrivateKey(func(parent PrivateKey) error {
		var err error
		material, err = parent.Decrypt(encrypted, "")
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", kerrors.ErrKeyUnlock, what, err)
	}

	return UseMaterial(cc.PGP, material, public, fn)
}

type boundKey struct {
	public ArmoredPublicKey
	use    func(func(PrivateKey) error) error
}

func (b boundKey) UsePrivateKey(fn func(PrivateKey) error) error { return b.use(fn) }
func (b boundKey) PublicKey() ArmoredPublicKey                   { return b.public }
