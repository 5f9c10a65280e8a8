package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every key accepted by a Context.
const KeySize = chacha20poly1305.KeySize

const formatVersion byte = 1

// Tag names the purpose of a ciphertext. Content encrypted under one tag
// cannot be decrypted under another, even with the same key.
type Tag string

const (
	TagVaultContent Tag = "vaultcontent"
	TagItemContent  Tag = "itemcontent"
	TagItemKey      Tag = "itemkey"
	TagShareKey     Tag = "sharekey"
)

func (t Tag) info() []byte {
	return []byte("vaultkey/encryption/v1/" + string(t))
}

// EncryptedByteArray is the output of Context.Encrypt:
// [version:1][nonce:12][ciphertext||poly1305 tag].
type EncryptedByteArray []byte

// Context encrypts and decrypts with a single key held in guarded memory.
// A Context is only valid inside the callback that received it.
type Context struct {
	key *memguard.LockedBuffer
}

// WithKey copies key into a locked buffer, calls fn with a Context over it,
// and destroys the buffer when fn returns. The caller's slice is not modified.
func WithKey(key []byte, fn func(*Context) error) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidKeyLength, KeySize, len(key))
	}

	buf := memguard.NewBufferFromBytes(append([]byte(nil), key...))
	defer buf.Destroy()

	return fn(&Context{key: buf})
}

// Encrypt seals plaintext under tag.
func (c *Context) Encrypt(plaintext []byte, tag Tag) (EncryptedByteArray, error) {
	aead, err := c.aead(tag)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: generating nonce: %v", kerrors.ErrEncryption, err)
	}

	out := make([]byte, 1, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out[0] = formatVersion
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, []byte(tag))

	return out, nil
}

// Decrypt opens ciphertext that was sealed under tag.
func (c *Context) Decrypt(ciphertext EncryptedByteArray, tag Tag) ([]byte, error) {
	aead, err := c.aead(tag)
	if err != nil {
		return nil, err
	}

	headerSize := 1 + aead.NonceSize()
	if len(ciphertext) < headerSize+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", kerrors.ErrDecryption)
	}
	if ciphertext[0] != formatVersion {
		return nil, fmt.Errorf("%w: unknown ciphertext version %d", kerrors.ErrDecryption, ciphertext[0])
	}

	nonce := ciphertext[1:headerSize]
	plaintext, err := aead.Open(nil, nonce, ciphertext[headerSize:], []byte(tag))
	if err != nil {
		return nil, fmt.Errorf("%w: %s content: %v", kerrors.ErrDecryption, tag, err)
	}
	return plaintext, nil
}

// aead derives the per-tag subkey so a key never seals two purposes directly.
func (c *Context) aead(tag Tag) (cipher.AEAD, error) {
	if c == nil || c.key == nil || !c.key.IsAlive() {
		return nil, fmt.Errorf("%w: encryption context is closed", kerrors.ErrKeyUnlock)
	}
	if tag == "" {
		return nil, fmt.Errorf("%w: empty tag", kerrors.ErrEncryption)
	}

	subkey := make([]byte, KeySize)
	defer memguard.WipeBytes(subkey)

	if _, err := io.ReadFull(hkdf.New(sha256.New, c.key.Bytes(), nil, tag.info()), subkey); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", tag, err)
	}

	aead, err := chacha20poly1305.New(subkey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return aead, nil
}
