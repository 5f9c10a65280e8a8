package encryption

import (
	"fmt"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"

	"github.com/awnumar/memguard"
)

// Provider keeps a long-lived key sealed in a memguard enclave and opens it
// only for the duration of a single operation.
type Provider struct {
	enclave *memguard.Enclave
}

// NewProvider seals key. The key slice is wiped.
func NewProvider(key []byte) (*Provider, error) {
	if len(key) != KeySize {
		memguard.WipeBytes(key)
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", kerrors.ErrInvalidKeyLength, KeySize, len(key))
	}
	return &Provider{enclave: memguard.NewEnclave(key)}, nil
}

// Use opens the sealed key for the duration of fn.
func (p *Provider) Use(fn func(*Context) error) error {
	if p == nil || p.enclave == nil {
		return fmt.Errorf("%w: encryption provider is closed", kerrors.ErrKeyUnlock)
	}

	buf, err := p.enclave.Open()
	if err != nil {
		return fmt.Errorf("%w: opening enclave: %v", kerrors.ErrKeyUnlock, err)
	}
	defer buf.Destroy()

	return fn(&Context{key: buf})
}

func (p *Provider) Encrypt(plaintext []byte, tag Tag) (EncryptedByteArray, error) {
	var out EncryptedByteArray
	err := p.Use(func(c *Context) error {
		var err error
		out, err = c.Encrypt(plaintext, tag)
		return err
	})
	return out, err
}

func (p *Provider) Decrypt(ciphertext EncryptedByteArray, tag Tag) ([]byte, error) {
	var out []byte
	err := p.Use(func(c *Context) error {
		var err error
		out, err = c.Decrypt(ciphertext, tag)
		return err
	})
	return out, err
}

// Close drops the enclave. Subsequent calls fail with ErrKeyUnlock.
func (p *Provider) Close() {
	if p != nil {
		p.enclave = nil
	}
}
