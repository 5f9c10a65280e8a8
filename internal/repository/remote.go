package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/requests"
	"github.com/PolarWolf314/vaultkey/internal/utils"
)

// Remote is the server side of the vault protocol.
type Remote interface {
	PutAddress(ctx context.Context, a Address) error
	GetAddress(ctx context.Context, addressID string) (Address, error)

	CreateVault(ctx context.Context, req requests.CreateVaultRequest) (Share, error)
	GetShare(ctx context.Context, shareID string) (Share, error)
	// RotateVault installs a new rotation. It must re-wrap every item of the
	// share and be exactly one above the current rotation.
	RotateVault(ctx context.Context, addressID string, req requests.RotateVaultRequest) (Share, error)

	CreateItem(ctx context.Context, shareID, addressID string, req requests.CreateItemRequest) (Item, error)
	GetItem(ctx context.Context, shareID, itemID string) (Item, error)
	ListItems(ctx context.Context, shareID string) ([]Item, error)
	// UpdateItem is a compare-and-swap on the item revision: it fails with
	// ErrStaleRevision unless req.LastRevision is the stored revision.
	UpdateItem(ctx context.Context, shareID, addressID string, req requests.UpdateItemRequest) (Item, error)

	SendInvite(ctx context.Context, inv Invite) (Invite, error)
	GetInvite(ctx context.Context, inviteID string) (Invite, error)
	AcceptInvite(ctx context.Context, inviteID, addressID string, req requests.AcceptInviteRequest) (Share, error)
}

// state is everything a remote stores.
type state struct {
	Addresses map[string]Address         `json:"addresses"`
	Shares    map[string]Share           `json:"shares"`
	Items     map[string]map[string]Item `json:"items"`
	Invites   map[string]Invite          `json:"invites"`
}

func newState() *state {
	return &state{
		Addresses: make(map[string]Address),
		Shares:    make(map[string]Share),
		Items:     make(map[string]map[string]Item),
		Invites:   make(map[string]Invite),
	}
}

// backend persists the serialized state.
type backend interface {
	read() ([]byte, error)
	write(data []byte) error
}

type memoryBackend struct {
	data []byte
}

func (m *memoryBackend) read() ([]byte, error) { return m.data, nil }

func (m *memoryBackend) write(data []byte) error {
	m.data = data
	return nil
}

type fileBackend struct {
	path string
}

func (f fileBackend) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

func (f fileBackend) write(data []byte) error {
	return utils.WriteFileAtomic(f.path, data, 0600)
}

// StoreRemote implements Remote on a serialized state. Every operation reads
// the state, applies itself, and writes it back only when it succeeded.
type StoreRemote struct {
	mu      sync.Mutex
	backend backend
	now     func() time.Time
}

// NewMemoryRemote returns a Remote held in memory.
func NewMemoryRemote() *StoreRemote {
	return &StoreRemote{backend: &memoryBackend{}, now: time.Now}
}

// RemoteFile is the state file of a FileRemote.
const RemoteFile = "remote.json"

// NewFileRemote returns a Remote stored as JSON in dir.
func NewFileRemote(dir string) *StoreRemote {
	return &StoreRemote{backend: fileBackend{path: filepath.Join(dir, RemoteFile)}, now: time.Now}
}

func (r *StoreRemote) load() (*state, error) {
	data, err := r.backend.read()
	if err != nil {
		return nil, fmt.Errorf("reading remote state: %w", err)
	}
	s := newState()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: remote state: %v", kerrors.ErrMalformedContent, err)
	}
	return s, nil
}

func (r *StoreRemote) view(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load()
	if err != nil {
		return err
	}
	return fn(s)
}

func (r *StoreRemote) update(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding remote state: %w", err)
	}
	if err := r.backend.write(data); err != nil {
		return fmt.Errorf("writing remote state: %w", err)
	}
	return nil
}

func (r *StoreRemote) PutAddress(ctx context.Context, a Address) error {
	if a.AddressID == "" || a.PublicKey == "" {
		return fmt.Errorf("%w: address needs an id and a public key", kerrors.ErrInvalidRequest)
	}
	return r.update(ctx, func(s *state) error {
		s.Addresses[a.AddressID] = a
		return nil
	})
}

func (r *StoreRemote) GetAddress(ctx context.Context, addressID string) (Address, error) {
	var out Address
	err := r.view(ctx, func(s *state) error {
		a, ok := s.Addresses[addressID]
		if !ok {
			return fmt.Errorf("%w: address %s", kerrors.ErrKeyNotFound, addressID)
		}
		out = a
		return nil
	})
	return out, err
}

func (r *StoreRemote) CreateVault(ctx context.Context, req requests.CreateVaultRequest) (Share, error) {
	var out Share
	err := r.update(ctx, func(s *state) error {
		if _, ok := s.Addresses[req.AddressID]; !ok {
			return fmt.Errorf("%w: address %s", kerrors.ErrKeyNotFound, req.AddressID)
		}
		if _, exists := s.Shares[req.ShareID]; exists {
			return fmt.Errorf("%w: share %s already exists", kerrors.ErrInvalidRequest, req.ShareID)
		}
		out = Share{
			ShareID:        req.ShareID,
			OwnerAddressID: req.AddressID,
			Vault:          req.ContentOf(),
			VaultSignerID:  req.AddressID,
			Keys: map[string][]requests.AcceptedInviteKey{
				req.AddressID: {{
					Key:         req.EncryptedVaultKey,
					KeyPublic:   req.VaultKeyPublic,
					KeyRotation: req.KeyRotation,
				}},
			},
			CreatedAt: r.now().UTC(),
		}
		s.Shares[req.ShareID] = out
		s.Items[req.ShareID] = make(map[string]Item)
		return nil
	})
	return out, err
}

func (r *StoreRemote) GetShare(ctx context.Context, shareID string) (Share, error) {
	var out Share
	err := r.view(ctx, func(s *state) error {
		share, ok := s.Shares[shareID]
		if !ok {
			return fmt.Errorf("%w: %s", kerrors.ErrShareNotFound, shareID)
		}
		out = share
		return nil
	})
	return out, err
}

func (r *StoreRemote) RotateVault(ctx context.Context, addressID string, req requests.RotateVaultRequest) (Share, error) {
	var out Share
	err := r.update(ctx, func(s *state) error {
		share, ok := s.Shares[req.ShareID]
		if !ok {
			return fmt.Errorf("%w: %s", kerrors.ErrShareNotFound, req.ShareID)
		}
		if len(share.Keys[addressID]) == 0 {
			return fmt.Errorf("%w: address %s is not a member of share %s", kerrors.ErrNoUsableKey, addressID, req.ShareID)
		}
		if req.KeyRotation != share.Rotation()+1 {
			return fmt.Errorf("%w: share %s is at rotation %d, got rotation %d",
				kerrors.ErrStaleRevision, req.ShareID, share.Rotation(), req.KeyRotation)
		}

		items := s.Items[req.ShareID]
		rotated := make(map[string]requests.RotatedItemKey, len(req.Items))
		for _, it := range req.Items {
			if _, ok := items[it.ItemID]; !ok {
				return fmt.Errorf("%w: %s", kerrors.ErrItemNotFound, it.ItemID)
			}
			rotated[it.ItemID] = it
		}
		if len(rotated) != len(items) {
			return fmt.Errorf("%w: rotation re-wraps %d of %d items", kerrors.ErrStaleRevision, len(rotated), len(items))
		}

		for id, it := range items {
			rk := rotated[id]
			it.ItemKey = rk.ItemKey
			it.KeyPacket = rk.KeyPacket
			it.KeyRotation = req.KeyRotation
			items[id] = it
		}

		share.Vault.KeyPacket = req.VaultKeyPacket
		share.Vault.KeyRotation = req.KeyRotation
		share.Vault.VaultKeySignature = req.VaultKeySignature
		share.Vault.AddressSignature = req.AddressSignature
		share.VaultSignerID = addressID
		share.Keys[addressID] = append(share.Keys[addressID], requests.AcceptedInviteKey{
			Key:         req.EncryptedVaultKey,
			KeyPublic:   req.VaultKeyPublic,
			KeyRotation: req.KeyRotation,
		})
		s.Shares[req.ShareID] = share
		out = share
		return nil
	})
	return out, err
}

func (r *StoreRemote) CreateItem(ctx context.Context, shareID, addressID string, req requests.CreateItemRequest) (Item, error) {
	var out Item
	err := r.update(ctx, func(s *state) error {
		share, ok := s.Shares[shareID]
		if !ok {
			return fmt.Errorf("%w: %s", kerrors.ErrShareNotFound, shareID)
		}
		if req.KeyRotation != share.Rotation() {
			return fmt.Errorf("%w: share %s is at rotation %d, item uses %d",
				kerrors.ErrStaleRevision, shareID, share.Rotation(), req.KeyRotation)
		}
		if _, exists := s.Items[shareID][req.ItemID]; exists {
			return fmt.Errorf("%w: item %s already exists", kerrors.ErrInvalidRequest, req.ItemID)
		}
		out = Item{
			ShareID:         shareID,
			ItemID:          req.ItemID,
			Revision:        1,
			KeyRotation:     req.KeyRotation,
			ItemKey:         req.ItemKey,
			ItemKeyPublic:   req.ItemKeyPublic,
			KeyPacket:       req.KeyPacket,
			Content:         req.ContentOf(),
			SignerAddressID: addressID,
			ModifiedAt:      r.now().UTC(),
		}
		s.Items[shareID][req.ItemID] = out
		return nil
	})
	return out, err
}

func (r *StoreRemote) GetItem(ctx context.Context, shareID, itemID string) (Item, error) {
	var out Item
	err := r.view(ctx, func(s *state) error {
		it, ok := s.Items[shareID][itemID]
		if !ok {
			return fmt.Errorf("%w: %s in share %s", kerrors.ErrItemNotFound, itemID, shareID)
		}
		out = it
		return nil
	})
	return out, err
}

func (r *StoreRemote) ListItems(ctx context.Context, shareID string) ([]Item, error) {
	var out []Item
	err := r.view(ctx, func(s *state) error {
		if _, ok := s.Shares[shareID]; !ok {
			return fmt.Errorf("%w: %s", kerrors.ErrShareNotFound, shareID)
		}
		for _, it := range s.Items[shareID] {
			out = append(out, it)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, err
}

func (r *StoreRemote) UpdateItem(ctx context.Context, shareID, addressID string, req requests.UpdateItemRequest) (Item, error) {
	var out Item
	err := r.update(ctx, func(s *state) error {
		it, ok := s.Items[shareID][req.ItemID]
		if !ok {
			return fmt.Errorf("%w: %s in share %s", kerrors.ErrItemNotFound, req.ItemID, shareID)
		}
		if req.LastRevision != it.Revision {
			return fmt.Errorf("%w: item %s is at revision %d, update is based on %d",
				kerrors.ErrStaleRevision, req.ItemID, it.Revision, req.LastRevision)
		}
		if req.KeyRotation != it.KeyRotation {
			return fmt.Errorf("%w: item %s is at rotation %d, update uses %d",
				kerrors.ErrStaleRevision, req.ItemID, it.KeyRotation, req.KeyRotation)
		}
		it.Revision++
		it.Content = req.ContentOf()
		it.SignerAddressID = addressID
		it.ModifiedAt = r.now().UTC()
		s.Items[shareID][req.ItemID] = it
		out = it
		return nil
	})
	return out, err
}

func (r *StoreRemote) SendInvite(ctx context.Context, inv Invite) (Invite, error) {
	if len(inv.Keys) == 0 || inv.ShareID == "" || inv.TargetAddressID == "" {
		return Invite{}, fmt.Errorf("%w: invite needs a share, a target and keys", kerrors.ErrInvalidRequest)
	}
	err := r.update(ctx, func(s *state) error {
		share, ok := s.Shares[inv.ShareID]
		if !ok {
			return fmt.Errorf("%w: %s", kerrors.ErrShareNotFound, inv.ShareID)
		}
		if len(share.Keys[inv.InviterAddressID]) == 0 {
			return fmt.Errorf("%w: inviter %s is not a member of share %s", kerrors.ErrNoUsableKey, inv.InviterAddressID, inv.ShareID)
		}
		if _, ok := s.Addresses[inv.TargetAddressID]; !ok {
			return fmt.Errorf("%w: address %s", kerrors.ErrKeyNotFound, inv.TargetAddressID)
		}
		if inv.InviteID == "" {
			inv.InviteID = uuid.NewString()
		}
		inv.CreatedAt = r.now().UTC()
		s.Invites[inv.InviteID] = inv
		return nil
	})
	if err != nil {
		return Invite{}, err
	}
	return inv, nil
}

func (r *StoreRemote) GetInvite(ctx context.Context, inviteID string) (Invite, error) {
	var out Invite
	err := r.view(ctx, func(s *state) error {
		inv, ok := s.Invites[inviteID]
		if !ok {
			return fmt.Errorf("%w: %s", kerrors.ErrInviteNotFound, inviteID)
		}
		out = inv
		return nil
	})
	return out, err
}

func (r *StoreRemote) AcceptInvite(ctx context.Context, inviteID, addressID string, req requests.AcceptInviteRequest) (Share, error) {
	var out Share
	err := r.update(ctx, func(s *state) error {
		inv, ok := s.Invites[inviteID]
		if !ok || inv.TargetAddressID != addressID {
			return fmt.Errorf("%w: %s", kerrors.ErrInviteNotFound, inviteID)
		}
		if req.ShareID != inv.ShareID || len(req.Keys) != len(inv.Keys) {
			return fmt.Errorf("%w: accepted keys do not match invite %s", kerrors.ErrInvalidRequest, inviteID)
		}
		share, ok := s.Shares[inv.ShareID]
		if !ok {
			return fmt.Errorf("%w: %s", kerrors.ErrShareNotFound, inv.ShareID)
		}

		share.Keys[addressID] = append([]requests.AcceptedInviteKey(nil), req.Keys...)
		s.Shares[inv.ShareID] = share
		delete(s.Invites, inviteID)
		out = share
		return nil
	})
	return out, err
}
