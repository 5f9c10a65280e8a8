package keys

import (
	"fmt"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/pgp"

	"github.com/awnumar/memguard"
)

// ArmoredPublicKey is an ASCII-armored PGP public key.
type ArmoredPublicKey = string

// PrivateKey is what a caller can do with a key while it is unlocked. It
// never exposes the key material itself.
type PrivateKey interface {
	// Decrypt decrypts message; a non-empty verifier requires a valid signature by it.
	Decrypt(message []byte, verifier ArmoredPublicKey) ([]byte, error)
	DecryptSessionKey(keyPacket []byte) (pgp.SessionKey, error)
	Sign(data []byte) ([]byte, error)
	// EncryptAndSign encrypts data to recipient, signed by this key.
	EncryptAndSign(data []byte, recipient ArmoredPublicKey) ([]byte, error)
	PublicKey() ArmoredPublicKey
}

// Unlocker grants scoped access to a private key.
type Unlocker interface {
	UsePrivateKey(fn func(PrivateKey) error) error
	PublicKey() ArmoredPublicKey
}

// UseMaterial moves material into a locked buffer, wiping the source slice,
// and calls fn with the unlocked key. The buffer is destroyed when fn
// returns or panics.
func UseMaterial(p pgp.Provider, material []byte, public ArmoredPublicKey, fn func(PrivateKey) error) error {
	if len(material) == 0 {
		return fmt.Errorf("%w: empty key material", kerrors.ErrKeyUnlock)
	}
	buf := memguard.NewBufferFromBytes(material)
	defer buf.Destroy()

	return fn(&unlocked{pgp: p, buf: buf, public: public})
}

// UseEnclave opens enclave for the duration of fn.
func UseEnclave(p pgp.Provider, enclave *memguard.Enclave, public ArmoredPublicKey, fn func(PrivateKey) error) error {
	if enclave == nil {
		return fmt.Errorf("%w: key is closed", kerrors.ErrKeyUnlock)
	}
	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("%w: opening enclave: %v", kerrors.ErrKeyUnlock, err)
	}
	defer buf.Destroy()

	return fn(&unlocked{pgp: p, buf: buf, public: public})
}

type unlocked struct {
	pgp    pgp.Provider
	buf    *memguard.LockedBuffer
	public ArmoredPublicKey
}

func (u *unlocked) material() ([]byte, error) {
	if !u.buf.IsAlive() {
		return nil, fmt.Errorf("%w: key used outside its scope", kerrors.ErrKeyUnlock)
	}
	return u.buf.Bytes(), nil
}

func (u *unlocked) Decrypt(message []byte, verifier ArmoredPublicKey) ([]byte, error) {
	m, err := u.material()
	if err != nil {
		return nil, err
	}
	return u.pgp.Decrypt(message, m, verifier)
}

func (u *unlocked) DecryptSessionKey(keyPacket []byte) (pgp.SessionKey, error) {
	m, err := u.material()
	if err != nil {
		return pgp.SessionKey{}, err
	}
	return u.pgp.DecryptSessionKey(keyPacket, m)
}

func (u *unlocked) Sign(data []byte) ([]byte, error) {
	m, err := u.material()
	if err != nil {
		return nil, err
	}
	return u.pgp.Sign(data, m)
}

func (u *unlocked) EncryptAndSign(data []byte, recipient ArmoredPublicKey) ([]byte, error) {
	m, err := u.material()
	if err != nil {
		return nil, err
	}
	return u.pgp.Encrypt(data, recipient, m)
}

func (u *unlocked) PublicKey() ArmoredPublicKey {
	return u.public
}
