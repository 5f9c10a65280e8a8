package pgp

// ArmorKind selects the armor header written by Provider.Armor.
type ArmorKind int

const (
	ArmorMessage ArmorKind = iota
	ArmorSignature
)

// KeyPair is a freshly generated key. PrivateKey is the serialized, unlocked
// private key and must be wiped by the caller once it has been wrapped.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  string
}

// SessionKey is a symmetric key wrapped by key packets.
type SessionKey struct {
	Key  []byte
	Algo string
}

// Provider is the set of PGP primitives the key hierarchy is built on.
//
// Private keys are passed as serialized unlocked key bytes. Implementations
// must not retain them past the call.
type Provider interface {
	GenerateKey(name, email string) (KeyPair, error)
	PublicKey(privateKey []byte) (string, error)

	// Encrypt encrypts data to recipient and signs it with signer when signer is non-nil.
	Encrypt(data []byte, recipient string, signer []byte) ([]byte, error)
	// Decrypt decrypts message and, when verifier is non-empty, requires a valid signature by it.
	Decrypt(message []byte, privateKey []byte, verifier string) ([]byte, error)

	Sign(data []byte, privateKey []byte) ([]byte, error)
	Verify(data, signature []byte, publicKey string) error

	GenerateSessionKey() (SessionKey, error)
	EncryptSessionKey(sessionKey SessionKey, publicKey string) ([]byte, error)
	DecryptSessionKey(keyPacket []byte, privateKey []byte) (SessionKey, error)

	// Lock returns the armored private key encrypted with passphrase.
	Lock(privateKey []byte, passphrase []byte) (string, error)
	// Unlock returns the serialized private key of an armored locked key.
	Unlock(armored string, passphrase []byte) ([]byte, error)

	Armor(kind ArmorKind, data []byte) (string, error)
	Unarmor(armored string) ([]byte, error)
	Base64Encode(data []byte) string
	Base64Decode(encoded string) ([]byte, error)
}
