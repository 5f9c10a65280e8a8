package repository

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/PolarWolf314/vaultkey/internal/encryption"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/utils"

	"github.com/awnumar/memguard"
)

// ShareKeyCache keeps the private material of share keys this device
// created, sealed with the device key under TagShareKey. It pins those keys:
// a remote that later serves a different public key for the same rotation
// is caught by Check.
type ShareKeyCache struct {
	Dir    string
	PGP    pgp.Provider
	Device *encryption.Provider
}

func NewShareKeyCache(dir string, p pgp.Provider, device *encryption.Provider) *ShareKeyCache {
	return &ShareKeyCache{Dir: dir, PGP: p, Device: device}
}

func (c *ShareKeyCache) path(shareID string, rotation int64) (string, error) {
	if !filepath.IsLocal(shareID) || filepath.Base(shareID) != shareID {
		return "", fmt.Errorf("%w: bad share id %q", kerrors.ErrInvalidRequest, shareID)
	}
	return filepath.Join(c.Dir, "sharekeys", shareID, strconv.FormatInt(rotation, 10)+".key"), nil
}

// Put seals material for k. material is wiped.
func (c *ShareKeyCache) Put(k keys.ShareKey, material []byte) error {
	defer memguard.WipeBytes(material)

	p, err := c.path(k.ShareID, k.Rotation)
	if err != nil {
		return err
	}
	sealed, err := c.Device.Encrypt(material, encryption.TagShareKey)
	if err != nil {
		return fmt.Errorf("sealing share %s rotation %d: %w", k.ShareID, k.Rotation, err)
	}
	return utils.WriteFileAtomic(p, sealed, 0600)
}

// Has reports whether material for the rotation is cached.
func (c *ShareKeyCache) Has(shareID string, rotation int64) bool {
	p, err := c.path(shareID, rotation)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Use unlocks the cached key of k for the duration of fn.
func (c *ShareKeyCache) Use(k keys.ShareKey, fn func(keys.PrivateKey) error) error {
	p, err := c.path(k.ShareID, k.Rotation)
	if err != nil {
		return err
	}
	sealed, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: share %s rotation %d is not cached", kerrors.ErrNoUsableKey, k.ShareID, k.Rotation)
	}
	if err != nil {
		return fmt.Errorf("reading cached share key: %w", err)
	}

	material, err := c.Device.Decrypt(sealed, encryption.TagShareKey)
	if err != nil {
		return fmt.Errorf("cached share %s rotation %d: %w", k.ShareID, k.Rotation, err)
	}
	return keys.UseMaterial(c.PGP, material, k.PublicKey, fn)
}

// Check verifies that the cached key of k's rotation, when there is one,
// is the private half of k.PublicKey. It reports whether k was pinned.
func (c *ShareKeyCache) Check(k keys.ShareKey) (bool, error) {
	if !c.Has(k.ShareID, k.Rotation) {
		return false, nil
	}

	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return false, err
	}
	sealed, err := c.PGP.Encrypt(challenge, k.PublicKey, nil)
	if err != nil {
		return true, fmt.Errorf("%w: share %s rotation %d public key: %v", kerrors.ErrUntrusted, k.ShareID, k.Rotation, err)
	}

	err = c.Use(k, func(pk keys.PrivateKey) error {
		got, err := pk.Decrypt(sealed, "")
		if err != nil {
			return err
		}
		if !bytes.Equal(got, challenge) {
			return errors.New("challenge mismatch")
		}
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("%w: share %s rotation %d does not match the pinned key: %v", kerrors.ErrUntrusted, k.ShareID, k.Rotation, err)
	}
	return true, nil
}
