package signature

import (
	"fmt"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
)

// Signer identifies which link of the chain a signature belongs to.
type Signer string

const (
	// SignerOwner is the key owning the content: the item key for items, the
	// vault key for vault metadata.
	SignerOwner Signer = "owner"
	// SignerAddress is the acting user's address key.
	SignerAddress Signer = "address"
)

// Trust is the outcome of verifying a signature chain.
type Trust int

const (
	Untrusted Trust = iota
	Trusted
)

func (t Trust) String() string {
	if t == Trusted {
		return "trusted"
	}
	return "untrusted"
}

// Signatures are the two detached signatures carried by every ciphertext.
type Signatures struct {
	Owner   []byte
	Address []byte
}

// VerificationError reports which signature of the chain failed.
type VerificationError struct {
	Signer Signer
	Err    error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s signature: %v", e.Signer, e.Err)
}

func (e *VerificationError) Unwrap() []error {
	return []error{kerrors.ErrUntrusted, kerrors.ErrSignatureVerification, e.Err}
}

// Sign signs ciphertext with the owning key and the address key. Each key is
// unlocked only for its own signature.
func Sign(ciphertext []byte, owner, address keys.Unlocker) (Signatures, error) {
	var sigs Signatures

	err := owner.UsePrivateKey(func(pk keys.PrivateKey) error {
		var err error
		sigs.Owner, err = pk.Sign(ciphertext)
		return err
	})
	if err != nil {
		return Signatures{}, fmt.Errorf("signing with %s key: %w", SignerOwner, err)
	}

	err = address.UsePrivateKey(func(pk keys.PrivateKey) error {
		var err error
		sigs.Address, err = pk.Sign(ciphertext)
		return err
	})
	if err != nil {
		return Signatures{}, fmt.Errorf("signing with %s key: %w", SignerAddress, err)
	}

	return sigs, nil
}

// Verify checks both signatures over ciphertext. Anything short of two valid
// signatures is Untrusted with a *VerificationError.
func Verify(p pgp.Provider, ciphertext []byte, sigs Signatures, ownerPub, addressPub keys.ArmoredPublicKey) (Trust, error) {
	checks := []struct {
		signer Signer
		sig    []byte
		pub    keys.ArmoredPublicKey
	}{
		{SignerOwner, sigs.Owner, ownerPub},
		{SignerAddress, sigs.Address, addressPub},
	}

	for _, c := range checks {
		if len(c.sig) == 0 {
			return Untrusted, &VerificationError{Signer: c.signer, Err: fmt.Errorf("signature is missing")}
		}
		if c.pub == "" {
			return Untrusted, &VerificationError{Signer: c.signer, Err: fmt.Errorf("no public key to verify against")}
		}
		if err := p.Verify(ciphertext, c.sig, c.pub); err != nil {
			return Untrusted, &VerificationError{Signer: c.signer, Err: err}
		}
	}

	return Trusted, nil
}
