package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/vaultkey/internal/configs"
	"github.com/PolarWolf314/vaultkey/internal/encryption"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKDF = configs.KDF{Time: 1, MemoryKiB: 1024, Threads: 1}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(), pgp.New(), testKDF)
	t.Cleanup(s.Close)
	return s
}

func TestGenerateAndOpen(t *testing.T) {
	s := newStore(t)
	pass := []byte("correct horse")

	pub, err := s.Generate("addr-1", "alice@example.com", pass)
	require.NoError(t, err)

	stored, err := s.PublicKey("addr-1")
	require.NoError(t, err)
	assert.Equal(t, pub, stored)

	meta, err := s.Metadata("addr-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", meta.Email)
	assert.Equal(t, testKDF, meta.KDF)
	assert.NotEmpty(t, meta.DeviceSalt)

	key, err := s.Open("addr-1", pass)
	require.NoError(t, err)
	assert.Equal(t, pub, key.PublicKey())

	var sig []byte
	require.NoError(t, key.UsePrivateKey(func(pk keys.PrivateKey) error {
		var err error
		sig, err = pk.Sign([]byte("hello"))
		return err
	}))
	require.NoError(t, s.PGP.Verify([]byte("hello"), sig, pub))
}

func TestPrivateKeyIsLockedOnDisk(t *testing.T) {
	s := newStore(t)
	_, err := s.Generate("addr-1", "alice@example.com", []byte("pw"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Dir, "addr-1", lockedKeyFile))
	require.NoError(t, err)
	_, err = s.PGP.Unlock(string(data), []byte("other"))
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
}

func TestOpenWrongPassphrase(t *testing.T) {
	s := newStore(t)
	_, err := s.Generate("addr-1", "alice@example.com", []byte("right"))
	require.NoError(t, err)

	_, err = s.Open("addr-1", []byte("wrong"))
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
	assert.Equal(t, kerrors.KindRetry, kerrors.Classify(err))

	_, err = s.DeviceContext()
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
}

func TestGenerateTwice(t *testing.T) {
	s := newStore(t)
	_, err := s.Generate("addr-1", "alice@example.com", []byte("pw"))
	require.NoError(t, err)

	_, err = s.Generate("addr-1", "alice@example.com", []byte("pw"))
	assert.ErrorIs(t, err, kerrors.ErrKeyExists)
}

func TestMissingKey(t *testing.T) {
	s := newStore(t)

	_, err := s.PublicKey("nope")
	assert.ErrorIs(t, err, kerrors.ErrKeyNotFound)
	_, err = s.Open("nope", []byte("pw"))
	assert.ErrorIs(t, err, kerrors.ErrKeyNotFound)
}

func TestDeviceKeyIsStableAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	pass := []byte("pw")

	first := New(dir, pgp.New(), testKDF)
	_, err := first.Generate("addr-1", "alice@example.com", pass)
	require.NoError(t, err)
	_, err = first.Open("addr-1", pass)
	require.NoError(t, err)
	device, err := first.DeviceContext()
	require.NoError(t, err)
	sealed, err := device.Encrypt([]byte("cached share key"), encryption.TagShareKey)
	require.NoError(t, err)
	first.Close()

	second := New(dir, pgp.New(), configs.DefaultKDF())
	defer second.Close()
	_, err = second.Open("addr-1", pass)
	require.NoError(t, err)
	device, err = second.DeviceContext()
	require.NoError(t, err)

	plain, err := device.Decrypt(sealed, encryption.TagShareKey)
	require.NoError(t, err)
	assert.Equal(t, "cached share key", string(plain))
}

func TestCloseDropsKeys(t *testing.T) {
	s := New(t.TempDir(), pgp.New(), testKDF)
	pass := []byte("pw")
	_, err := s.Generate("addr-1", "alice@example.com", pass)
	require.NoError(t, err)
	key, err := s.Open("addr-1", pass)
	require.NoError(t, err)

	s.Close()

	err = key.UsePrivateKey(func(keys.PrivateKey) error { return nil })
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
	_, err = s.DeviceContext()
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
}

func TestAddressKeyUnlocksShareKey(t *testing.T) {
	s := newStore(t)
	pass := []byte("pw")
	_, err := s.Generate("addr-1", "alice@example.com", pass)
	require.NoError(t, err)
	addr, err := s.Open("addr-1", pass)
	require.NoError(t, err)

	share, material, err := keys.GenerateShareKey(s.PGP, "share-1", 0, addr.PublicKey())
	require.NoError(t, err)
	expected := append([]byte(nil), material...)

	var got []byte
	require.NoError(t, addr.UsePrivateKey(func(pk keys.PrivateKey) error {
		got, err = pk.Decrypt(share.EncryptedKey, "")
		return err
	}))
	assert.Equal(t, expected, got)
}
