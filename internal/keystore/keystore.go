package keystore

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/PolarWolf314/vaultkey/internal/configs"
	"github.com/PolarWolf314/vaultkey/internal/encryption"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/utils"

	"github.com/awnumar/memguard"
)

const (
	lockedKeyFile = "address.asc"
	publicKeyFile = "address.pub.asc"
	metadataFile  = "metadata.toml"

	saltSize = 16
)

// Metadata is stored next to each address key.
type Metadata struct {
	AddressID string    `toml:"address_id"`
	Email     string    `toml:"email"`
	CreatedAt time.Time `toml:"created_at"`
	// Hostname is the machine the key was generated on.
	Hostname string `toml:"hostname,omitempty"`
	// DeviceSalt is the base64 Argon2id salt of the device key.
	DeviceSalt string      `toml:"device_salt"`
	KDF        configs.KDF `toml:"kdf"`
}

// Store keeps passphrase-locked address keys under Dir, one directory per
// address id. Opened keys and the device key live in memguard enclaves until
// Close.
type Store struct {
	Dir string
	PGP pgp.Provider
	// KDF is used for newly generated keys. Existing keys keep the
	// parameters recorded in their metadata.
	KDF configs.KDF

	mu     sync.Mutex
	device *encryption.Provider
	opened []*AddressKey
}

func New(dir string, p pgp.Provider, kdf configs.KDF) *Store {
	return &Store{Dir: dir, PGP: p, KDF: kdf}
}

func (s *Store) keyDir(addressID string) string {
	return filepath.Join(s.Dir, addressID)
}

// Generate creates and stores a new address key locked with passphrase and
// returns its public key.
func (s *Store) Generate(addressID, email string, passphrase []byte) (keys.ArmoredPublicKey, error) {
	if addressID == "" {
		return "", fmt.Errorf("address id is empty")
	}
	if len(passphrase) == 0 {
		return "", fmt.Errorf("%w: passphrase is empty", kerrors.ErrKeyUnlock)
	}

	dir := s.keyDir(addressID)
	if _, err := os.Stat(filepath.Join(dir, lockedKeyFile)); err == nil {
		return "", fmt.Errorf("%w: address %s", kerrors.ErrKeyExists, addressID)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check key directory %s: %w", dir, err)
	}

	pair, err := s.PGP.GenerateKey(addressID, email)
	if err != nil {
		return "", err
	}
	locked, err := s.PGP.Lock(pair.PrivateKey, passphrase)
	memguard.WipeBytes(pair.PrivateKey)
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate device salt: %w", err)
	}

	if err := utils.WriteFileAtomic(filepath.Join(dir, lockedKeyFile), []byte(locked), 0600); err != nil {
		return "", err
	}
	if err := utils.WriteFileAtomic(filepath.Join(dir, publicKeyFile), []byte(pair.PublicKey), 0644); err != nil {
		return "", err
	}
	hostname, _ := utils.GetHostname()
	meta := Metadata{
		AddressID:  addressID,
		Hostname:   hostname,
		Email:      email,
		CreatedAt:  time.Now().UTC(),
		DeviceSalt: s.PGP.Base64Encode(salt),
		KDF:        s.KDF,
	}
	if err := configs.SaveTOML(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", fmt.Errorf("failed to save key metadata: %w", err)
	}

	return pair.PublicKey, nil
}

// Metadata returns the stored metadata of addressID.
func (s *Store) Metadata(addressID string) (Metadata, error) {
	path := filepath.Join(s.keyDir(addressID), metadataFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Metadata{}, fmt.Errorf("%w: address %s", kerrors.ErrKeyNotFound, addressID)
	}
	var meta Metadata
	if err := configs.LoadTOML(path, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to load key metadata: %w", err)
	}
	return meta, nil
}

// PublicKey returns the armored public key of addressID without unlocking it.
func (s *Store) PublicKey(addressID string) (keys.ArmoredPublicKey, error) {
	data, err := os.ReadFile(filepath.Join(s.keyDir(addressID), publicKeyFile))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: address %s", kerrors.ErrKeyNotFound, addressID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read public key: %w", err)
	}
	return string(data), nil
}

// Open unlocks addressID with passphrase. The first successful Open also
// derives the device key.
func (s *Store) Open(addressID string, passphrase []byte) (*AddressKey, error) {
	lockedPath := filepath.Join(s.keyDir(addressID), lockedKeyFile)
	locked, err := os.ReadFile(lockedPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: address %s", kerrors.ErrKeyNotFound, addressID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", kerrors.ErrKeyUnlock, lockedPath, err)
	}

	public, err := s.PublicKey(addressID)
	if err != nil {
		return nil, err
	}
	meta, err := s.Metadata(addressID)
	if err != nil {
		return nil, err
	}

	material, err := s.PGP.Unlock(string(locked), passphrase)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		device, err := s.deriveDeviceKey(meta, passphrase)
		if err != nil {
			memguard.WipeBytes(material)
			return nil, err
		}
		s.device = device
	}

	key := &AddressKey{
		ID:      addressID,
		pgp:     s.PGP,
		public:  public,
		enclave: memguard.NewEnclave(material),
	}
	s.opened = append(s.opened, key)
	return key, nil
}

func (s *Store) deriveDeviceKey(meta Metadata, passphrase []byte) (*encryption.Provider, error) {
	salt, err := s.PGP.Base64Decode(meta.DeviceSalt)
	if err != nil {
		return nil, fmt.Errorf("device salt of %s: %w", meta.AddressID, err)
	}
	kdf := meta.KDF
	if kdf.Time == 0 || kdf.MemoryKiB == 0 || kdf.Threads == 0 {
		kdf = configs.DefaultKDF()
	}
	key := argon2.IDKey(passphrase, salt, kdf.Time, kdf.MemoryKiB, kdf.Threads, encryption.KeySize)
	return encryption.NewProvider(key)
}

// DeviceContext returns the provider sealing local caches. It fails with
// ErrKeyUnlock until an address key has been opened.
func (s *Store) DeviceContext() (*encryption.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil, fmt.Errorf("%w: no address key has been opened", kerrors.ErrKeyUnlock)
	}
	return s.device, nil
}

// Close drops the device key and every opened address key.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.opened {
		k.Close()
	}
	s.opened = nil
	s.device.Close()
	s.device = nil
}
