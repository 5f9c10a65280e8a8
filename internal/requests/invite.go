package requests

import (
	"encoding/binary"
	"fmt"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"

	"github.com/awnumar/memguard"
)

type EncryptInviteKeysInput struct {
	// Inviter is the inviter's address key; every share key must be
	// wrapped to it.
	Inviter         keys.Unlocker
	TargetPublicKey keys.ArmoredPublicKey
	ShareKeys       []keys.ShareKey
}

// EncryptInviteKeys re-encrypts each share key to the target, signed by the
// inviter's address key, and signs each blob together with its share id and
// rotation with the share key itself.
// Output index i corresponds to input index i.
func (b *Builder) EncryptInviteKeys(in EncryptInviteKeysInput) ([]EncryptedInviteKey, error) {
	if in.Inviter == nil || in.TargetPublicKey == "" {
		return nil, fmt.Errorf("%w: invite needs an inviter and a target", kerrors.ErrInvalidRequest)
	}
	if len(in.ShareKeys) == 0 {
		return nil, fmt.Errorf("%w: no share keys to invite to", kerrors.ErrInvalidRequest)
	}

	out := make([]EncryptedInviteKey, len(in.ShareKeys))
	for i, k := range in.ShareKeys {
		encrypted, err := b.encryptInviteKey(in.Inviter, in.TargetPublicKey, k)
		if err != nil {
			return nil, fmt.Errorf("invite key %d (share %s rotation %d): %w", i, k.ShareID, k.Rotation, err)
		}
		out[i] = encrypted
	}

	b.Log.Debugf("encrypted %d invite keys", len(out))
	return out, nil
}

func (b *Builder) encryptInviteKey(inviter keys.Unlocker, target keys.ArmoredPublicKey, k keys.ShareKey) (EncryptedInviteKey, error) {
	var (
		blob     []byte
		material []byte
	)
	defer func() { memguard.WipeBytes(material) }()

	err := inviter.UsePrivateKey(func(pk keys.PrivateKey) error {
		var err error
		material, err = pk.Decrypt(k.EncryptedKey, "")
		if err != nil {
			return fmt.Errorf("%w: %w", kerrors.ErrKeyUnlock, err)
		}
		blob, err = pk.EncryptAndSign(material, target)
		return err
	})
	if err != nil {
		return EncryptedInviteKey{}, err
	}

	var keySig []byte
	err = keys.UseMaterial(b.PGP, append([]byte(nil), material...), k.PublicKey, func(pk keys.PrivateKey) error {
		var err error
		keySig, err = pk.Sign(inviteKeySigned(blob, k.ShareID, k.Rotation))
		return err
	})
	if err != nil {
		return EncryptedInviteKey{}, err
	}

	enc := EncryptedInviteKey{
		Key:          b.PGP.Base64Encode(blob),
		KeyRotation:  k.Rotation,
		KeySignature: b.PGP.Base64Encode(keySig),
	}
	return enc, b.check(enc)
}

type AcceptInviteInput struct {
	ShareID string
	// Invitee is the invitee's address key.
	Invitee          keys.Unlocker
	InviterPublicKey keys.ArmoredPublicKey
	Keys             []EncryptedInviteKey
}

type AcceptInviteResult struct {
	Request AcceptInviteRequest
	// Keys are the accepted share keys, wrapped to the invitee.
	Keys []keys.ShareKey
	// Set indexes Keys by rotation, ready for keys.Keyring.Apply.
	Set *keys.RotationSet
}

// AcceptInvite decrypts and verifies every invite key and re-wraps it for the
// invitee. It is all or nothing: when any key fails, no key is returned and
// the error wraps ErrInviteAccept.
func (b *Builder) AcceptInvite(in AcceptInviteInput) (AcceptInviteResult, error) {
	fail := func(err error) (AcceptInviteResult, error) {
		b.Log.Securityf("rejected invite to share %s: %v", in.ShareID, err)
		return AcceptInviteResult{}, fmt.Errorf("%w: share %s: %w", kerrors.ErrInviteAccept, in.ShareID, err)
	}
	if in.Invitee == nil || in.InviterPublicKey == "" || in.ShareID == "" {
		return fail(fmt.Errorf("%w: invite needs a share, an invitee and an inviter", kerrors.ErrInvalidRequest))
	}
	if len(in.Keys) == 0 {
		return fail(fmt.Errorf("%w: invite has no keys", kerrors.ErrInvalidRequest))
	}

	accepted := make([]keys.ShareKey, 0, len(in.Keys))
	for i, enc := range in.Keys {
		k, err := b.acceptInviteKey(in.ShareID, in.Invitee, in.InviterPublicKey, enc)
		if err != nil {
			return fail(fmt.Errorf("key %d (rotation %d): %w", i, enc.KeyRotation, err))
		}
		accepted = append(accepted, k)
	}

	set, err := keys.NewRotationSet(accepted...)
	if err != nil {
		return fail(err)
	}

	req := AcceptInviteRequest{ShareID: in.ShareID, Keys: make([]AcceptedInviteKey, len(accepted))}
	for i, k := range accepted {
		req.Keys[i] = AcceptedInviteKey{
			Key:         b.PGP.Base64Encode(k.EncryptedKey),
			KeyPublic:   k.PublicKey,
			KeyRotation: k.Rotation,
		}
	}
	if err := b.check(req); err != nil {
		return fail(err)
	}

	b.Log.Debugf("accepted %d keys of share %s", len(accepted), in.ShareID)
	return AcceptInviteResult{Request: req, Keys: accepted, Set: set}, nil
}

func (b *Builder) acceptInviteKey(shareID string, invitee keys.Unlocker, inviterPub keys.ArmoredPublicKey, enc EncryptedInviteKey) (keys.ShareKey, error) {
	if err := b.check(enc); err != nil {
		return keys.ShareKey{}, err
	}
	blob, err := b.PGP.Base64Decode(enc.Key)
	if err != nil {
		return keys.ShareKey{}, err
	}
	keySig, err := b.PGP.Base64Decode(enc.KeySignature)
	if err != nil {
		return keys.ShareKey{}, err
	}

	var material []byte
	defer func() { memguard.WipeBytes(material) }()

	err = invitee.UsePrivateKey(func(pk keys.PrivateKey) error {
		var err error
		material, err = pk.Decrypt(blob, inviterPub)
		return err
	})
	if err != nil {
		return keys.ShareKey{}, err
	}

	public, err := b.PGP.PublicKey(material)
	if err != nil {
		return keys.ShareKey{}, err
	}
	if err := b.PGP.Verify(inviteKeySigned(blob, shareID, enc.KeyRotation), keySig, public); err != nil {
		return keys.ShareKey{}, err
	}

	wrapped, err := b.PGP.Encrypt(material, invitee.PublicKey(), nil)
	if err != nil {
		return keys.ShareKey{}, err
	}

	return keys.ShareKey{
		ShareID:      shareID,
		Rotation:     enc.KeyRotation,
		PublicKey:    public,
		EncryptedKey: wrapped,
	}, nil
}

// inviteKeySigned is the data a share key signs in an invite: the blob, then
// the length-prefixed share id and the rotation, so neither label can be
// moved to another blob.
func inviteKeySigned(blob []byte, shareID string, rotation int64) []byte {
	out := make([]byte, 0, len(blob)+len(shareID)+16)
	out = append(out, blob...)
	out = binary.BigEndian.AppendUint64(out, uint64(len(shareID)))
	out = append(out, shareID...)
	return binary.BigEndian.AppendUint64(out, uint64(rotation))
}
