package pgp

import (
	"encoding/base64"
	"errors"
	"fmt"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"

	"github.com/ProtonMail/gopenpgp/v2/armor"
	"github.com/ProtonMail/gopenpgp/v2/constants"
	"github.com/ProtonMail/gopenpgp/v2/crypto"
	"github.com/awnumar/memguard"
)

const (
	defaultKeyType = "x25519"
)

// GopenPGP implements Provider with ProtonMail's gopenpgp.
type GopenPGP struct {
	// KeyType is passed to crypto.GenerateKey, "x25519" or "rsa".
	KeyType string
	// Bits is only used for RSA keys.
	Bits int
}

// New returns a provider generating x25519 keys.
func New() *GopenPGP {
	return &GopenPGP{KeyType: defaultKeyType}
}

func (g *GopenPGP) GenerateKey(name, email string) (KeyPair, error) {
	keyType := g.KeyType
	if keyType == "" {
		keyType = defaultKeyType
	}

	key, err := crypto.GenerateKey(name, email, keyType, g.Bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating %s key: %w", keyType, err)
	}
	defer key.ClearPrivateParams()

	private, err := key.Serialize()
	if err != nil {
		return KeyPair{}, fmt.Errorf("serializing private key: %w", err)
	}

	public, err := key.GetArmoredPublicKey()
	if err != nil {
		memguard.WipeBytes(private)
		return KeyPair{}, fmt.Errorf("armoring public key: %w", err)
	}

	return KeyPair{PrivateKey: private, PublicKey: public}, nil
}

func (g *GopenPGP) PublicKey(privateKey []byte) (string, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	defer key.ClearPrivateParams()

	public, err := key.GetArmoredPublicKey()
	if err != nil {
		return "", fmt.Errorf("armoring public key: %w", err)
	}
	return public, nil
}

func (g *GopenPGP) Encrypt(data []byte, recipient string, signer []byte) ([]byte, error) {
	recipientRing, err := publicKeyRing(recipient)
	if err != nil {
		return nil, err
	}

	var signerRing *crypto.KeyRing
	if signer != nil {
		signerRing, err = privateKeyRing(signer)
		if err != nil {
			return nil, err
		}
		defer signerRing.ClearPrivateParams()
	}

	message, err := recipientRing.Encrypt(crypto.NewPlainMessage(data), signerRing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrEncryption, err)
	}
	return message.GetBinary(), nil
}

func (g *GopenPGP) Decrypt(message []byte, privateKey []byte, verifier string) ([]byte, error) {
	ring, err := privateKeyRing(privateKey)
	if err != nil {
		return nil, err
	}
	defer ring.ClearPrivateParams()

	var verifyRing *crypto.KeyRing
	var verifyTime int64
	if verifier != "" {
		verifyRing, err = publicKeyRing(verifier)
		if err != nil {
			return nil, err
		}
		verifyTime = crypto.GetUnixTime()
	}

	plain, err := ring.Decrypt(crypto.NewPGPMessage(message), verifyRing, verifyTime)
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrSignatureVerification, err)
		}
		return nil, fmt.Errorf("%w: %v", kerrors.ErrDecryption, err)
	}
	return plain.GetBinary(), nil
}

func (g *GopenPGP) Sign(data []byte, privateKey []byte) ([]byte, error) {
	ring, err := privateKeyRing(privateKey)
	if err != nil {
		return nil, err
	}
	defer ring.ClearPrivateParams()

	signature, err := ring.SignDetached(crypto.NewPlainMessage(data))
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}
	return signature.GetBinary(), nil
}

func (g *GopenPGP) Verify(data, signature []byte, publicKey string) error {
	if len(signature) == 0 {
		return fmt.Errorf("%w: signature is missing", kerrors.ErrSignatureVerification)
	}

	ring, err := publicKeyRing(publicKey)
	if err != nil {
		return err
	}

	err = ring.VerifyDetached(crypto.NewPlainMessage(data), crypto.NewPGPSignature(signature), crypto.GetUnixTime())
	if err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrSignatureVerification, err)
	}
	return nil
}

func (g *GopenPGP) GenerateSessionKey() (SessionKey, error) {
	sk, err := crypto.GenerateSessionKey()
	if err != nil {
		return SessionKey{}, fmt.Errorf("generating session key: %w", err)
	}
	return copySessionKey(sk), nil
}

func (g *GopenPGP) EncryptSessionKey(sessionKey SessionKey, publicKey string) ([]byte, error) {
	ring, err := publicKeyRing(publicKey)
	if err != nil {
		return nil, err
	}

	token := append([]byte(nil), sessionKey.Key...)
	defer memguard.WipeBytes(token)

	keyPacket, err := ring.EncryptSessionKey(crypto.NewSessionKeyFromToken(token, sessionKey.Algo))
	if err != nil {
		return nil, fmt.Errorf("%w: session key: %v", kerrors.ErrEncryption, err)
	}
	return keyPacket, nil
}

func (g *GopenPGP) DecryptSessionKey(keyPacket []byte, privateKey []byte) (SessionKey, error) {
	ring, err := privateKeyRing(privateKey)
	if err != nil {
		return SessionKey{}, err
	}
	defer ring.ClearPrivateParams()

	sk, err := ring.DecryptSessionKey(keyPacket)
	if err != nil {
		return SessionKey{}, fmt.Errorf("%w: key packet: %v", kerrors.ErrDecryption, err)
	}
	return copySessionKey(sk), nil
}

func (g *GopenPGP) Lock(privateKey []byte, passphrase []byte) (string, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	defer key.ClearPrivateParams()

	locked, err := key.Lock(passphrase)
	if err != nil {
		return "", fmt.Errorf("locking key: %w", err)
	}

	armored, err := locked.Armor()
	if err != nil {
		return "", fmt.Errorf("armoring locked key: %w", err)
	}
	return armored, nil
}

func (g *GopenPGP) Unlock(armored string, passphrase []byte) ([]byte, error) {
	key, err := crypto.NewKeyFromArmored(armored)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing armored key: %v", kerrors.ErrKeyUnlock, err)
	}

	unlocked, err := key.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrKeyUnlock, err)
	}
	defer unlocked.ClearPrivateParams()

	private, err := unlocked.Serialize()
	if err != nil {
		return nil, fmt.Errorf("%w: serializing key: %v", kerrors.ErrKeyUnlock, err)
	}
	return private, nil
}

func (g *GopenPGP) Armor(kind ArmorKind, data []byte) (string, error) {
	header := constants.PGPMessageHeader
	if kind == ArmorSignature {
		header = constants.PGPSignatureHeader
	}
	return armor.ArmorWithType(data, header)
}

func (g *GopenPGP) Unarmor(armored string) ([]byte, error) {
	data, err := armor.Unarmor(armored)
	if err != nil {
		return nil, fmt.Errorf("%w: unarmor: %v", kerrors.ErrMalformedContent, err)
	}
	return data, nil
}

func (g *GopenPGP) Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func (g *GopenPGP) Base64Decode(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", kerrors.ErrMalformedContent, err)
	}
	return data, nil
}

func parsePrivateKey(privateKey []byte) (*crypto.Key, error) {
	key, err := crypto.NewKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key: %v", kerrors.ErrKeyUnlock, err)
	}
	if !key.IsPrivate() {
		return nil, fmt.Errorf("%w: not a private key", kerrors.ErrKeyUnlock)
	}
	locked, err := key.IsLocked()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrKeyUnlock, err)
	}
	if locked {
		return nil, fmt.Errorf("%w: private key is still locked", kerrors.ErrKeyUnlock)
	}
	return key, nil
}

func privateKeyRing(privateKey []byte) (*crypto.KeyRing, error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	ring, err := crypto.NewKeyRing(key)
	if err != nil {
		key.ClearPrivateParams()
		return nil, fmt.Errorf("%w: building keyring: %v", kerrors.ErrKeyUnlock, err)
	}
	return ring, nil
}

func publicKeyRing(armored string) (*crypto.KeyRing, error) {
	key, err := crypto.NewKeyFromArmored(armored)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing public key: %v", kerrors.ErrMalformedContent, err)
	}

	ring, err := crypto.NewKeyRing(key)
	if err != nil {
		return nil, fmt.Errorf("building public keyring: %w", err)
	}
	return ring, nil
}

func copySessionKey(sk *crypto.SessionKey) SessionKey {
	out := SessionKey{Key: append([]byte(nil), sk.Key...), Algo: sk.Algo}
	memguard.WipeBytes(sk.Key)
	return out
}

func isSignatureError(err error) bool {
	var value crypto.SignatureVerificationError
	if errors.As(err, &value) {
		return true
	}
	var pointer *crypto.SignatureVerificationError
	return errors.As(err, &pointer)
}
