package encryption

import (
	"bytes"
	"crypto/rand"
	"testing"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return key
}

func TestRoundTrip(t *testing.T) {
	key := randomKey(t)
	inputs := [][]byte{
		{},
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}

	err := WithKey(key, func(c *Context) error {
		for _, in := range inputs {
			ct, err := c.Encrypt(in, TagItemContent)
			require.NoError(t, err)

			out, err := c.Decrypt(ct, TagItemContent)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(in, out))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestTagBinding(t *testing.T) {
	key := randomKey(t)
	tags := []Tag{TagVaultContent, TagItemContent, TagItemKey, TagShareKey}

	err := WithKey(key, func(c *Context) error {
		for _, a := range tags {
			ct, err := c.Encrypt([]byte("payload"), a)
			require.NoError(t, err)
			for _, b := range tags {
				_, err := c.Decrypt(ct, b)
				if a == b {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, kerrors.ErrDecryption, "%s decrypted as %s", a, b)
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestWrongKeyAndTamper(t *testing.T) {
	var ct EncryptedByteArray
	require.NoError(t, WithKey(randomKey(t), func(c *Context) error {
		var err error
		ct, err = c.Encrypt([]byte("secret"), TagVaultContent)
		return err
	}))

	require.NoError(t, WithKey(randomKey(t), func(c *Context) error {
		_, err := c.Decrypt(ct, TagVaultContent)
		assert.ErrorIs(t, err, kerrors.ErrDecryption)
		return nil
	}))

	short := ct[:10]
	require.NoError(t, WithKey(randomKey(t), func(c *Context) error {
		_, err := c.Decrypt(short, TagVaultContent)
		assert.ErrorIs(t, err, kerrors.ErrDecryption)
		return nil
	}))
}

func TestWithKeyRejectsBadLength(t *testing.T) {
	called := false
	err := WithKey([]byte("short"), func(c *Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, kerrors.ErrInvalidKeyLength)
	assert.False(t, called)
}

func TestWithKeyLeavesCallerKeyAndClosesContext(t *testing.T) {
	key := randomKey(t)
	original := append([]byte(nil), key...)

	var leaked *Context
	require.NoError(t, WithKey(key, func(c *Context) error {
		leaked = c
		return nil
	}))

	assert.Equal(t, original, key)

	_, err := leaked.Encrypt([]byte("late"), TagItemContent)
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
}

func TestProvider(t *testing.T) {
	key := randomKey(t)
	p, err := NewProvider(key)
	require.NoError(t, err)

	ct, err := p.Encrypt([]byte("cached share key"), TagShareKey)
	require.NoError(t, err)

	pt, err := p.Decrypt(ct, TagShareKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached share key"), pt)

	p.Close()
	_, err = p.Decrypt(ct, TagShareKey)
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
}
