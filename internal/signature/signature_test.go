package signature

import (
	"testing"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainKey struct {
	p    pgp.Provider
	pair pgp.KeyPair
}

func (k plainKey) UsePrivateKey(fn func(keys.PrivateKey) error) error {
	return keys.UseMaterial(k.p, append([]byte(nil), k.pair.PrivateKey...), k.pair.PublicKey, fn)
}

func (k plainKey) PublicKey() keys.ArmoredPublicKey { return k.pair.PublicKey }

func newKey(t *testing.T, p pgp.Provider, name string) plainKey {
	t.Helper()
	pair, err := p.GenerateKey(name, "")
	require.NoError(t, err)
	return plainKey{p: p, pair: pair}
}

func TestSignAndVerify(t *testing.T) {
	p := pgp.New()
	owner, address := newKey(t, p, "owner"), newKey(t, p, "address")
	ciphertext := []byte("ciphertext bytes")

	sigs, err := Sign(ciphertext, owner, address)
	require.NoError(t, err)

	trust, err := Verify(p, ciphertext, sigs, owner.PublicKey(), address.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, Trusted, trust)
}

func TestVerifyFailsClosed(t *testing.T) {
	p := pgp.New()
	owner, address, stranger := newKey(t, p, "owner"), newKey(t, p, "address"), newKey(t, p, "stranger")
	ciphertext := []byte("ciphertext bytes")

	sigs, err := Sign(ciphertext, owner, address)
	require.NoError(t, err)
	forged, err := Sign(ciphertext, stranger, stranger)
	require.NoError(t, err)

	tests := []struct {
		name       string
		ciphertext []byte
		sigs       Signatures
		signer     Signer
	}{
		{"bad address signature", ciphertext, Signatures{Owner: sigs.Owner, Address: forged.Address}, SignerAddress},
		{"bad owner signature", ciphertext, Signatures{Owner: forged.Owner, Address: sigs.Address}, SignerOwner},
		{"missing owner signature", ciphertext, Signatures{Address: sigs.Address}, SignerOwner},
		{"missing address signature", ciphertext, Signatures{Owner: sigs.Owner}, SignerAddress},
		{"swapped signatures", ciphertext, Signatures{Owner: sigs.Address, Address: sigs.Owner}, SignerOwner},
		{"tampered ciphertext", []byte("ciphertext bytez"), sigs, SignerOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trust, err := Verify(p, tt.ciphertext, tt.sigs, owner.PublicKey(), address.PublicKey())
			assert.Equal(t, Untrusted, trust)
			assert.ErrorIs(t, err, kerrors.ErrUntrusted)
			assert.ErrorIs(t, err, kerrors.ErrSignatureVerification)
			assert.Equal(t, kerrors.KindSecurity, kerrors.Classify(err))

			var verr *VerificationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.signer, verr.Signer)
		})
	}
}

func TestVerifyWithoutPublicKey(t *testing.T) {
	p := pgp.New()
	owner, address := newKey(t, p, "owner"), newKey(t, p, "address")
	sigs, err := Sign([]byte("c"), owner, address)
	require.NoError(t, err)

	trust, err := Verify(p, []byte("c"), sigs, owner.PublicKey(), "")
	assert.Equal(t, Untrusted, trust)
	assert.ErrorIs(t, err, kerrors.ErrUntrusted)
}

func TestSignPropagatesUnlockFailure(t *testing.T) {
	p := pgp.New()
	address := newKey(t, p, "address")
	broken := keys.ShareKey{ShareID: "s"}.Bind(keys.CryptoContext{PGP: p})

	_, err := Sign([]byte("c"), broken, address)
	assert.ErrorIs(t, err, kerrors.ErrKeyUnlock)
}

func TestTrustString(t *testing.T) {
	assert.Equal(t, "trusted", Trusted.String())
	assert.Equal(t, "untrusted", Untrusted.String())
}
