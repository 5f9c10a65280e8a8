package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	logger "github.com/PolarWolf314/vaultkey/internal/logging"
	"github.com/PolarWolf314/vaultkey/internal/requests"

	"github.com/awnumar/memguard"
)

// DefaultMaxAttempts bounds UpdateWithRefetch.
const DefaultMaxAttempts = 3

// Repository is one address's view of the remote. It builds requests with
// Builder, sends them to Remote and applies accepted results to the local
// caches. Nothing local changes when the remote rejects a request.
type Repository struct {
	Remote  Remote
	Builder *requests.Builder
	Items   *Cache
	// ShareKeys is optional. When set, created share keys are pinned in it.
	ShareKeys *ShareKeyCache
	Keyring   *keys.Keyring
	Log       logger.Logger

	AddressID string
	Address   keys.Unlocker

	MaxAttempts int
}

func New(remote Remote, b *requests.Builder, items *Cache, addressID string, address keys.Unlocker, log logger.Logger) *Repository {
	return &Repository{
		Remote:      remote,
		Builder:     b,
		Items:       items,
		Keyring:     keys.NewKeyring(),
		Log:         log,
		AddressID:   addressID,
		Address:     address,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Keys fetches the share, applies this address's rotation set to the
// keyring and returns it. Pinned rotations are checked against the served
// public keys.
func (r *Repository) Keys(ctx context.Context, shareID string) (*keys.RotationSet, Share, error) {
	share, err := r.Remote.GetShare(ctx, shareID)
	if err != nil {
		return nil, Share{}, err
	}
	set, err := share.RotationSet(r.Builder.PGP, r.AddressID)
	if err != nil {
		return nil, Share{}, err
	}

	if r.ShareKeys != nil {
		for _, rot := range set.Rotations() {
			k, _ := set.ForRotation(rot)
			if _, err := r.ShareKeys.Check(k); err != nil {
				r.Log.Securityf("share %s: %v", shareID, err)
				return nil, Share{}, err
			}
		}
	}

	items, err := r.Remote.ListItems(ctx, shareID)
	if err != nil {
		return nil, Share{}, err
	}
	referenced := []int64{share.Rotation()}
	for _, it := range items {
		referenced = append(referenced, it.KeyRotation)
	}
	if err := r.Keyring.Apply(set, referenced...); err != nil {
		return nil, Share{}, fmt.Errorf("share %s: %w", shareID, err)
	}
	return set, share, nil
}

func (r *Repository) lookupKey(ctx context.Context, addressID string) (keys.ArmoredPublicKey, error) {
	a, err := r.Remote.GetAddress(ctx, addressID)
	if err != nil {
		return "", err
	}
	return a.PublicKey, nil
}

// signerKey returns the public key of addressID, which must hold keys of
// share. The remote names the signer, so a non-member is untrusted.
func (r *Repository) signerKey(ctx context.Context, share Share, addressID string) (keys.ArmoredPublicKey, error) {
	if len(share.Keys[addressID]) == 0 {
		err := fmt.Errorf("%w: signer %s is not a member of share %s", kerrors.ErrUntrusted, addressID, share.ShareID)
		r.Log.Securityf("%v", err)
		return "", err
	}
	return r.lookupKey(ctx, addressID)
}

func (r *Repository) pin(k keys.ShareKey, material []byte) {
	if r.ShareKeys == nil {
		memguard.WipeBytes(material)
		return
	}
	if err := r.ShareKeys.Put(k, material); err != nil {
		r.Log.Warnf("could not cache share %s rotation %d: %v", k.ShareID, k.Rotation, err)
	}
}

// CreateVault creates a vault owned by this address.
func (r *Repository) CreateVault(ctx context.Context, meta codec.VaultMetadata) (Share, error) {
	res, err := r.Builder.CreateVault(requests.CreateVaultInput{
		AddressID: r.AddressID,
		Address:   r.Address,
		Metadata:  meta,
	})
	if err != nil {
		return Share{}, err
	}

	share, err := r.Remote.CreateVault(ctx, res.Request)
	if err != nil {
		memguard.WipeBytes(res.VaultKeyMaterial)
		return Share{}, err
	}

	r.pin(res.VaultKey, res.VaultKeyMaterial)
	if err := r.Keyring.Add(res.VaultKey); err != nil {
		return Share{}, err
	}
	r.Log.Infof("created vault %s", share.ShareID)
	return share, nil
}

// OpenVault returns the verified metadata of a vault.
func (r *Repository) OpenVault(ctx context.Context, shareID string) (codec.VaultMetadata, Share, error) {
	set, share, err := r.Keys(ctx, shareID)
	if err != nil {
		return codec.VaultMetadata{}, Share{}, err
	}
	vk, err := set.ForRotation(share.Rotation())
	if err != nil {
		return codec.VaultMetadata{}, Share{}, err
	}
	signer, err := r.signerKey(ctx, share, share.VaultSignerID)
	if err != nil {
		return codec.VaultMetadata{}, Share{}, err
	}

	meta, err := r.Builder.OpenVault(requests.OpenVaultInput{
		VaultKey:        vk,
		Address:         r.Address,
		Content:         share.Vault,
		SignerPublicKey: signer,
	})
	if err != nil {
		return codec.VaultMetadata{}, Share{}, err
	}
	return meta, share, nil
}

// RotateVault moves a vault and all its items to a new rotation.
func (r *Repository) RotateVault(ctx context.Context, shareID string) (Share, error) {
	set, share, err := r.Keys(ctx, shareID)
	if err != nil {
		return Share{}, err
	}
	current, err := set.ForRotation(share.Rotation())
	if err != nil {
		return Share{}, err
	}
	signer, err := r.signerKey(ctx, share, share.VaultSignerID)
	if err != nil {
		return Share{}, err
	}

	records, err := r.Remote.ListItems(ctx, shareID)
	if err != nil {
		return Share{}, err
	}
	items := make([]requests.ItemKeys, 0, len(records))
	for _, it := range records {
		ik, packet, err := it.Keys(r.Builder.PGP)
		if err != nil {
			return Share{}, err
		}
		items = append(items, requests.ItemKeys{ItemKey: ik, KeyPacket: packet})
	}

	res, err := r.Builder.RotateVault(requests.RotateVaultInput{
		Current:         current,
		Address:         r.Address,
		Vault:           share.Vault,
		SignerPublicKey: signer,
		Items:           items,
	})
	if err != nil {
		return Share{}, err
	}

	rotated, err := r.Remote.RotateVault(ctx, r.AddressID, res.Request)
	if err != nil {
		memguard.WipeBytes(res.VaultKeyMaterial)
		return Share{}, err
	}

	r.pin(res.VaultKey, res.VaultKeyMaterial)
	next, err := set.With(res.VaultKey)
	if err != nil {
		return Share{}, err
	}
	if err := r.Keyring.Apply(next, res.VaultKey.Rotation); err != nil {
		return Share{}, err
	}
	r.Log.Infof("rotated vault %s to rotation %d", shareID, rotated.Rotation())
	return rotated, nil
}

// CreateItem adds an item under the current rotation of the vault.
func (r *Repository) CreateItem(ctx context.Context, shareID string, contents codec.ItemContents) (Item, error) {
	set, share, err := r.Keys(ctx, shareID)
	if err != nil {
		return Item{}, err
	}
	vk, err := set.ForRotation(share.Rotation())
	if err != nil {
		return Item{}, err
	}

	res, err := r.Builder.CreateItem(requests.CreateItemInput{
		VaultKey: vk,
		Address:  r.Address,
		Contents: contents,
	})
	if err != nil {
		return Item{}, err
	}

	it, err := r.Remote.CreateItem(ctx, shareID, r.AddressID, res.Request)
	if err != nil {
		return Item{}, err
	}
	if err := r.Items.Put(it); err != nil {
		return it, err
	}
	return it, nil
}

// OpenItem fetches, verifies and decrypts the latest revision of an item.
// The verified record replaces the cached one.
func (r *Repository) OpenItem(ctx context.Context, shareID, itemID string) (codec.ItemContents, Item, error) {
	set, share, err := r.Keys(ctx, shareID)
	if err != nil {
		return codec.ItemContents{}, Item{}, err
	}
	it, err := r.Remote.GetItem(ctx, shareID, itemID)
	if err != nil {
		return codec.ItemContents{}, Item{}, err
	}

	contents, err := r.open(ctx, set, share, it)
	if err != nil {
		return codec.ItemContents{}, Item{}, err
	}
	if err := r.Items.Put(it); err != nil {
		return contents, it, err
	}
	return contents, it, nil
}

func (r *Repository) open(ctx context.Context, set *keys.RotationSet, share Share, it Item) (codec.ItemContents, error) {
	vk, err := set.ForRotation(it.KeyRotation)
	if err != nil {
		return codec.ItemContents{}, err
	}
	ik, packet, err := it.Keys(r.Builder.PGP)
	if err != nil {
		return codec.ItemContents{}, err
	}
	signer, err := r.signerKey(ctx, share, it.SignerAddressID)
	if err != nil {
		return codec.ItemContents{}, err
	}
	return r.Builder.OpenItem(requests.OpenItemInput{
		VaultKey:        vk,
		ItemKey:         ik,
		KeyPacket:       packet,
		Address:         r.Address,
		Content:         it.Content,
		SignerPublicKey: signer,
	})
}

// Update writes contents as the revision after base, which is normally the
// cached record. A stale base fails with ErrStaleRevision and leaves the
// cache as it was.
func (r *Repository) Update(ctx context.Context, base Item, contents codec.ItemContents) (Item, error) {
	set, err := r.Keyring.Set(base.ShareID)
	if err != nil {
		if set, _, err = r.Keys(ctx, base.ShareID); err != nil {
			return Item{}, err
		}
	}
	vk, err := set.ForRotation(base.KeyRotation)
	if err != nil {
		return Item{}, err
	}
	ik, packet, err := base.Keys(r.Builder.PGP)
	if err != nil {
		return Item{}, err
	}

	req, err := r.Builder.UpdateItem(requests.UpdateItemInput{
		VaultKey:     vk,
		ItemKey:      ik,
		KeyPacket:    packet,
		Address:      r.Address,
		Contents:     contents,
		LastRevision: base.Revision,
	})
	if err != nil {
		return Item{}, err
	}

	it, err := r.Remote.UpdateItem(ctx, base.ShareID, r.AddressID, req)
	if err != nil {
		return Item{}, err
	}
	if err := r.Items.Put(it); err != nil {
		return it, err
	}
	r.Log.Debugf("item %s now at revision %d", it.ItemID, it.Revision)
	return it, nil
}

// Mutation derives new contents from the latest verified contents.
type Mutation func(codec.ItemContents) (codec.ItemContents, error)

// UpdateWithRefetch fetches the latest revision, applies mutate to its
// contents and writes the result. When another writer got there first it
// starts over from the new revision, at most MaxAttempts times.
func (r *Repository) UpdateWithRefetch(ctx context.Context, shareID, itemID string, mutate Mutation) (Item, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		current, latest, err := r.OpenItem(ctx, shareID, itemID)
		if err != nil {
			return Item{}, err
		}
		next, err := mutate(current)
		if err != nil {
			return Item{}, err
		}

		it, err := r.Update(ctx, latest, next)
		if err == nil {
			return it, nil
		}
		if !errors.Is(err, kerrors.ErrStaleRevision) {
			return Item{}, err
		}
		lastErr = err
		r.Log.Debugf("item %s changed during update, attempt %d of %d", itemID, attempt, attempts)
	}
	return Item{}, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// Invite sends every rotation of a vault this address holds to target.
func (r *Repository) Invite(ctx context.Context, shareID, targetAddressID string) (Invite, error) {
	set, _, err := r.Keys(ctx, shareID)
	if err != nil {
		return Invite{}, err
	}
	target, err := r.lookupKey(ctx, targetAddressID)
	if err != nil {
		return Invite{}, err
	}

	shareKeys := make([]keys.ShareKey, 0, set.Len())
	for _, rot := range set.Rotations() {
		k, _ := set.ForRotation(rot)
		shareKeys = append(shareKeys, k)
	}

	enc, err := r.Builder.EncryptInviteKeys(requests.EncryptInviteKeysInput{
		Inviter:         r.Address,
		TargetPublicKey: target,
		ShareKeys:       shareKeys,
	})
	if err != nil {
		return Invite{}, err
	}

	return r.Remote.SendInvite(ctx, Invite{
		ShareID:          shareID,
		InviterAddressID: r.AddressID,
		TargetAddressID:  targetAddressID,
		Keys:             enc,
	})
}

// AcceptInvite verifies every key of an invite and joins the vault. Nothing
// is sent or applied unless all keys verify.
func (r *Repository) AcceptInvite(ctx context.Context, inviteID string) (Share, error) {
	inv, err := r.Remote.GetInvite(ctx, inviteID)
	if err != nil {
		return Share{}, err
	}
	if inv.TargetAddressID != r.AddressID {
		return Share{}, fmt.Errorf("%w: %s is addressed to %s", kerrors.ErrInviteNotFound, inviteID, inv.TargetAddressID)
	}
	inviter, err := r.lookupKey(ctx, inv.InviterAddressID)
	if err != nil {
		return Share{}, err
	}

	res, err := r.Builder.AcceptInvite(requests.AcceptInviteInput{
		ShareID:          inv.ShareID,
		Invitee:          r.Address,
		InviterPublicKey: inviter,
		Keys:             inv.Keys,
	})
	if err != nil {
		return Share{}, err
	}

	share, err := r.Remote.AcceptInvite(ctx, inviteID, r.AddressID, res.Request)
	if err != nil {
		return Share{}, err
	}
	if err := r.Keyring.Apply(res.Set); err != nil {
		return share, err
	}
	r.Log.Infof("joined vault %s with %d keys", share.ShareID, res.Set.Len())
	return share, nil
}
