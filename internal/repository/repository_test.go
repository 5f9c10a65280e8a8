package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/requests"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndOpenVault(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")

	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	assert.Equal(t, "alice", share.OwnerAddressID)
	assert.Equal(t, int64(0), share.Rotation())

	meta, _, err := alice.OpenVault(ctx, share.ShareID)
	require.NoError(t, err)
	assert.Equal(t, "Finance", meta.Name)
	assert.Equal(t, "Bills", meta.Description)

	cur, err := alice.Keyring.Current(share.ShareID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur.Rotation)
}

func TestCreateAndOpenItem(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)

	it, err := alice.CreateItem(ctx, share.ShareID, note("due on the 1st"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), it.Revision)

	cached, err := alice.Items.Get(share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, it.Revision, cached.Revision)

	got, _, err := alice.OpenItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "due on the 1st", got.Metadata.Note)
}

func TestUpdateStaleRevisionLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)

	it, err := alice.CreateItem(ctx, share.ShareID, note("v1"))
	require.NoError(t, err)
	for i := 2; i <= 5; i++ {
		it, err = alice.Update(ctx, it, note(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}
	require.Equal(t, int64(5), it.Revision)

	// A second device of the same user writes revision 6.
	laptop := newDevice(t, remote, "alice", alice.Address)
	_, latest, err := laptop.OpenItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	six, err := laptop.Update(ctx, latest, note("from laptop"))
	require.NoError(t, err)
	require.Equal(t, int64(6), six.Revision)

	base, err := alice.Items.Get(share.ShareID, it.ItemID)
	require.NoError(t, err)
	require.Equal(t, int64(5), base.Revision)

	_, err = alice.Update(ctx, base, note("stale"))
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrStaleRevision)
	assert.Equal(t, kerrors.KindRetry, kerrors.Classify(err))

	after, err := alice.Items.Get(share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, base, after)

	remoteItem, err := remote.GetItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), remoteItem.Revision)
	got, _, err := laptop.OpenItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "from laptop", got.Metadata.Note)
}

func TestUpdateWithRefetch(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	it, err := alice.CreateItem(ctx, share.ShareID, note("a"))
	require.NoError(t, err)

	laptop := newDevice(t, remote, "alice", alice.Address)
	_, err = laptop.UpdateWithRefetch(ctx, share.ShareID, it.ItemID, func(c codec.ItemContents) (codec.ItemContents, error) {
		c.Metadata.Note += "b"
		return c, nil
	})
	require.NoError(t, err)

	// alice's cache is at revision 1; the refetch starts from revision 2.
	updated, err := alice.UpdateWithRefetch(ctx, share.ShareID, it.ItemID, func(c codec.ItemContents) (codec.ItemContents, error) {
		c.Metadata.Note += "c"
		return c, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Revision)

	got, _, err := alice.OpenItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Metadata.Note)

	cached, err := alice.Items.Get(share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cached.Revision)
}

// racingRemote lets another writer update the item right before every
// update of the repository under test.
type racingRemote struct {
	Remote
	race    func()
	updates atomic.Int32
}

func (r *racingRemote) UpdateItem(ctx context.Context, shareID, addressID string, req requests.UpdateItemRequest) (Item, error) {
	r.updates.Add(1)
	r.race()
	return r.Remote.UpdateItem(ctx, shareID, addressID, req)
}

func TestUpdateWithRefetchIsBounded(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	it, err := alice.CreateItem(ctx, share.ShareID, note("a"))
	require.NoError(t, err)

	other := newDevice(t, remote, "alice", alice.Address)
	racing := &racingRemote{Remote: remote}
	racing.race = func() {
		_, err := other.UpdateWithRefetch(ctx, share.ShareID, it.ItemID, func(c codec.ItemContents) (codec.ItemContents, error) {
			c.Metadata.Note = "other"
			return c, nil
		})
		require.NoError(t, err)
	}
	alice.Remote = racing

	cachedBefore, err := alice.Items.Get(share.ShareID, it.ItemID)
	require.NoError(t, err)

	_, err = alice.UpdateWithRefetch(ctx, share.ShareID, it.ItemID, func(c codec.ItemContents) (codec.ItemContents, error) {
		c.Metadata.Note = "mine"
		return c, nil
	})
	assert.ErrorIs(t, err, kerrors.ErrStaleRevision)
	assert.Equal(t, int32(DefaultMaxAttempts), racing.updates.Load())

	latest, err := remote.GetItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(1+DefaultMaxAttempts), latest.Revision)

	// The cache holds what alice last read, never her rejected write.
	cached, err := alice.Items.Get(share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cached.Revision, cachedBefore.Revision)
	assert.Less(t, cached.Revision, latest.Revision)
}

func TestUpdateWithRefetchMutationError(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	it, err := alice.CreateItem(ctx, share.ShareID, note("a"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = alice.UpdateWithRefetch(ctx, share.ShareID, it.ItemID, func(codec.ItemContents) (codec.ItemContents, error) {
		return codec.ItemContents{}, boom
	})
	assert.ErrorIs(t, err, boom)

	latest, err := remote.GetItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.Revision)
}

func TestInviteAndAccept(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	bob := newUser(t, remote, "bob")

	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	it, err := alice.CreateItem(ctx, share.ShareID, note("shared"))
	require.NoError(t, err)
	_, err = alice.RotateVault(ctx, share.ShareID)
	require.NoError(t, err)

	_, _, err = bob.OpenVault(ctx, share.ShareID)
	assert.ErrorIs(t, err, kerrors.ErrNoUsableKey)

	inv, err := alice.Invite(ctx, share.ShareID, "bob")
	require.NoError(t, err)
	require.Len(t, inv.Keys, 2)

	joined, err := bob.AcceptInvite(ctx, inv.InviteID)
	require.NoError(t, err)
	assert.Len(t, joined.Keys["bob"], 2)

	_, err = remote.GetInvite(ctx, inv.InviteID)
	assert.ErrorIs(t, err, kerrors.ErrInviteNotFound)

	meta, _, err := bob.OpenVault(ctx, share.ShareID)
	require.NoError(t, err)
	assert.Equal(t, "Finance", meta.Name)

	_, err = bob.UpdateWithRefetch(ctx, share.ShareID, it.ItemID, func(c codec.ItemContents) (codec.ItemContents, error) {
		c.Metadata.Note = "edited by bob"
		return c, nil
	})
	require.NoError(t, err)

	got, latest, err := alice.OpenItem(ctx, share.ShareID, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "edited by bob", got.Metadata.Note)
	assert.Equal(t, "bob", latest.SignerAddressID)
}

// tamperingRemote corrupts the last key of every invite it serves.
type tamperingRemote struct {
	Remote
}

func (r tamperingRemote) GetInvite(ctx context.Context, inviteID string) (Invite, error) {
	inv, err := r.Remote.GetInvite(ctx, inviteID)
	if err != nil || len(inv.Keys) < 2 {
		return inv, err
	}
	last := len(inv.Keys) - 1
	inv.Keys[last].KeySignature = inv.Keys[0].KeySignature
	return inv, nil
}

func TestAcceptTamperedInviteAppliesNothing(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	bob := newUser(t, remote, "bob")

	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	_, err = alice.RotateVault(ctx, share.ShareID)
	require.NoError(t, err)
	inv, err := alice.Invite(ctx, share.ShareID, "bob")
	require.NoError(t, err)

	bob.Remote = tamperingRemote{Remote: remote}
	_, err = bob.AcceptInvite(ctx, inv.InviteID)
	assert.ErrorIs(t, err, kerrors.ErrInviteAccept)
	assert.Equal(t, kerrors.KindSecurity, kerrors.Classify(err))

	after, err := remote.GetShare(ctx, share.ShareID)
	require.NoError(t, err)
	assert.Empty(t, after.Keys["bob"])
	_, err = bob.Keyring.Set(share.ShareID)
	assert.ErrorIs(t, err, kerrors.ErrNoUsableKey)

	// The invite is still pending and accepts cleanly from an honest remote.
	bob.Remote = remote
	_, err = bob.AcceptInvite(ctx, inv.InviteID)
	require.NoError(t, err)
}

func TestAcceptInviteForSomeoneElse(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	newUser(t, remote, "bob")
	carol := newUser(t, remote, "carol")

	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	inv, err := alice.Invite(ctx, share.ShareID, "bob")
	require.NoError(t, err)

	_, err = carol.AcceptInvite(ctx, inv.InviteID)
	assert.ErrorIs(t, err, kerrors.ErrInviteNotFound)
}

func TestRotateVaultKeepsItemsReadable(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)

	first, err := alice.CreateItem(ctx, share.ShareID, note("one"))
	require.NoError(t, err)
	second, err := alice.CreateItem(ctx, share.ShareID, note("two"))
	require.NoError(t, err)

	rotated, err := alice.RotateVault(ctx, share.ShareID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rotated.Rotation())

	for _, it := range []Item{first, second} {
		latest, err := remote.GetItem(ctx, share.ShareID, it.ItemID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), latest.KeyRotation)
		assert.Equal(t, it.Revision, latest.Revision)
	}

	got, _, err := alice.OpenItem(ctx, share.ShareID, second.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Metadata.Note)

	meta, _, err := alice.OpenVault(ctx, share.ShareID)
	require.NoError(t, err)
	assert.Equal(t, "Finance", meta.Name)

	// An update built on the pre-rotation record is rejected.
	_, err = alice.Update(ctx, first, note("stale rotation"))
	assert.Error(t, err)

	updated, err := alice.UpdateWithRefetch(ctx, share.ShareID, first.ItemID, func(c codec.ItemContents) (codec.ItemContents, error) {
		c.Metadata.Note = "after rotation"
		return c, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.KeyRotation)
}

// substitutingRemote serves another public key for rotation 0 of a share.
type substitutingRemote struct {
	Remote
	publicKey string
}

func (r substitutingRemote) GetShare(ctx context.Context, shareID string) (Share, error) {
	share, err := r.Remote.GetShare(ctx, shareID)
	if err != nil {
		return share, err
	}
	for id, ks := range share.Keys {
		for i := range ks {
			if ks[i].KeyRotation == 0 {
				ks[i].KeyPublic = r.publicKey
			}
		}
		share.Keys[id] = ks
	}
	return share, nil
}

func TestPinnedShareKeyDetectsSubstitution(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	alice.ShareKeys = NewShareKeyCache(t.TempDir(), testPGP, newDeviceKey(t))

	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	assert.True(t, alice.ShareKeys.Has(share.ShareID, 0))

	_, _, err = alice.OpenVault(ctx, share.ShareID)
	require.NoError(t, err)

	other, err := testPGP.GenerateKey("mallory", "")
	require.NoError(t, err)
	alice.Remote = substitutingRemote{Remote: remote, publicKey: other.PublicKey}

	_, _, err = alice.OpenVault(ctx, share.ShareID)
	assert.ErrorIs(t, err, kerrors.ErrUntrusted)
}

// relabellingRemote names signerID as the signer of every vault and item.
type relabellingRemote struct {
	Remote
	signerID string
}

func (r relabellingRemote) GetShare(ctx context.Context, shareID string) (Share, error) {
	share, err := r.Remote.GetShare(ctx, shareID)
	share.VaultSignerID = r.signerID
	return share, err
}

func (r relabellingRemote) GetItem(ctx context.Context, shareID, itemID string) (Item, error) {
	it, err := r.Remote.GetItem(ctx, shareID, itemID)
	it.SignerAddressID = r.signerID
	return it, err
}

func TestSignerMustBeShareMember(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	newUser(t, remote, "mallory")

	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)
	it, err := alice.CreateItem(ctx, share.ShareID, note("pin 1234"))
	require.NoError(t, err)

	alice.Remote = relabellingRemote{Remote: remote, signerID: "mallory"}

	_, _, err = alice.OpenVault(ctx, share.ShareID)
	assert.ErrorIs(t, err, kerrors.ErrUntrusted)
	assert.Equal(t, kerrors.KindSecurity, kerrors.Classify(err))

	_, _, err = alice.OpenItem(ctx, share.ShareID, it.ItemID)
	assert.ErrorIs(t, err, kerrors.ErrUntrusted)

	_, err = alice.RotateVault(ctx, share.ShareID)
	assert.ErrorIs(t, err, kerrors.ErrUntrusted)

	alice.Remote = remote
	_, _, err = alice.OpenItem(ctx, share.ShareID, it.ItemID)
	assert.NoError(t, err)
}

func TestRemoteRejectsRotationSkip(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryRemote()
	alice := newUser(t, remote, "alice")
	share, err := alice.CreateVault(ctx, financeBills())
	require.NoError(t, err)

	_, err = remote.RotateVault(ctx, "alice", requests.RotateVaultRequest{ShareID: share.ShareID, KeyRotation: 5})
	assert.ErrorIs(t, err, kerrors.ErrStaleRevision)

	after, err := remote.GetShare(ctx, share.ShareID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Rotation())
}

func TestRemoteHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryRemote().GetShare(ctx, "any")
	assert.ErrorIs(t, err, context.Canceled)
}
