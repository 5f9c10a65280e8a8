package requests

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/encryption"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	logger "github.com/PolarWolf314/vaultkey/internal/logging"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/signature"

	"github.com/awnumar/memguard"
)

// Builder assembles encrypted, signed request payloads. It holds no key
// material and is safe for concurrent use.
type Builder struct {
	PGP pgp.Provider
	Log logger.Logger

	validate *validator.Validate
}

func NewBuilder(p pgp.Provider, log logger.Logger) *Builder {
	return &Builder{
		PGP:      p,
		Log:      log,
		validate: validator.New(),
	}
}

func (b *Builder) check(req any) error {
	if err := b.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrInvalidRequest, err)
	}
	return nil
}

func (b *Builder) cc(parent keys.Unlocker) keys.CryptoContext {
	return keys.CryptoContext{PGP: b.PGP, Parent: parent}
}

// sealed is ciphertext and its signature chain.
type sealed struct {
	content []byte
	sigs    signature.Signatures
}

func (b *Builder) encode(s sealed) (content, ownerSig, addressSig string) {
	return b.PGP.Base64Encode(s.content), b.PGP.Base64Encode(s.sigs.Owner), b.PGP.Base64Encode(s.sigs.Address)
}

// seal encrypts plaintext with the session key under tag and signs the
// ciphertext with owner and address.
func (b *Builder) seal(sk pgp.SessionKey, plaintext []byte, tag encryption.Tag, owner, address keys.Unlocker) (sealed, error) {
	var ct encryption.EncryptedByteArray
	err := encryption.WithKey(sk.Key, func(c *encryption.Context) error {
		var err error
		ct, err = c.Encrypt(plaintext, tag)
		return err
	})
	if err != nil {
		return sealed{}, err
	}

	sigs, err := signature.Sign(ct, owner, address)
	if err != nil {
		return sealed{}, err
	}
	return sealed{content: ct, sigs: sigs}, nil
}

// envelope is encrypted content as received on the wire.
type envelope struct {
	what          string
	content       string
	formatVersion int
	ownerSig      string
	addressSig    string
}

// open verifies the signature chain over the ciphertext and only then
// recovers the session key and decrypts.
func (b *Builder) open(env envelope, ownerPub, addressPub keys.ArmoredPublicKey, tag encryption.Tag, sessionKey func() (pgp.SessionKey, error)) ([]byte, error) {
	if env.formatVersion != int(codec.FormatVersion) {
		return nil, fmt.Errorf("%w: %s content format %d", kerrors.ErrUnsupportedFormat, env.what, env.formatVersion)
	}

	ct, err := b.PGP.Base64Decode(env.content)
	if err != nil {
		return nil, fmt.Errorf("%s content: %w", env.what, err)
	}
	var sigs signature.Signatures
	// Undecodable signatures are treated as missing.
	sigs.Owner, _ = b.PGP.Base64Decode(env.ownerSig)
	sigs.Address, _ = b.PGP.Base64Decode(env.addressSig)

	if _, err := signature.Verify(b.PGP, ct, sigs, ownerPub, addressPub); err != nil {
		b.Log.Securityf("rejected %s content: %v", env.what, err)
		return nil, fmt.Errorf("%s: %w", env.what, err)
	}

	sk, err := sessionKey()
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(sk.Key)

	var plain []byte
	err = encryption.WithKey(sk.Key, func(c *encryption.Context) error {
		var err error
		plain, err = c.Decrypt(ct, tag)
		return err
	})
	return plain, err
}

// newSessionKey returns a session key usable as an encryption context key.
func (b *Builder) newSessionKey() (pgp.SessionKey, error) {
	sk, err := b.PGP.GenerateSessionKey()
	if err != nil {
		return pgp.SessionKey{}, err
	}
	if len(sk.Key) != encryption.KeySize {
		memguard.WipeBytes(sk.Key)
		return pgp.SessionKey{}, fmt.Errorf("%w: session key algorithm %s", kerrors.ErrInvalidKeyLength, sk.Algo)
	}
	return sk, nil
}
