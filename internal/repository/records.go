package repository

import (
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keys"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/requests"
)

// Address is a published address public key.
type Address struct {
	AddressID string                `json:"addressId"`
	Email     string                `json:"email"`
	PublicKey keys.ArmoredPublicKey `json:"publicKey"`
}

// Share is a vault as stored remotely. Keys holds, per member address, the
// share key rotations wrapped to that member.
type Share struct {
	ShareID        string                                  `json:"shareId"`
	OwnerAddressID string                                  `json:"ownerAddressId"`
	Vault          requests.VaultContent                   `json:"vault"`
	VaultSignerID  string                                  `json:"vaultSignerId"`
	Keys           map[string][]requests.AcceptedInviteKey `json:"keys"`
	CreatedAt      time.Time                               `json:"createdAt"`
}

// Rotation is the current rotation of the share.
func (s Share) Rotation() int64 {
	return s.Vault.KeyRotation
}

// RotationSet decodes the share keys wrapped to addressID.
func (s Share) RotationSet(p pgp.Provider, addressID string) (*keys.RotationSet, error) {
	wrapped := s.Keys[addressID]
	if len(wrapped) == 0 {
		return nil, fmt.Errorf("%w: address %s is not a member of share %s", kerrors.ErrNoUsableKey, addressID, s.ShareID)
	}

	out := make([]keys.ShareKey, 0, len(wrapped))
	for _, w := range wrapped {
		encrypted, err := p.Base64Decode(w.Key)
		if err != nil {
			return nil, fmt.Errorf("share %s rotation %d: %w", s.ShareID, w.KeyRotation, err)
		}
		out = append(out, keys.ShareKey{
			ShareID:      s.ShareID,
			Rotation:     w.KeyRotation,
			PublicKey:    w.KeyPublic,
			EncryptedKey: encrypted,
		})
	}
	return keys.NewRotationSet(out...)
}

// Item is an item as stored remotely. Revision starts at 1 and grows by one
// with every accepted update.
type Item struct {
	ShareID         string               `json:"shareId"`
	ItemID          string               `json:"itemId"`
	Revision        int64                `json:"revision"`
	KeyRotation     int64                `json:"keyRotation"`
	ItemKey         string               `json:"itemKey"`
	ItemKeyPublic   string               `json:"itemKeyPublic"`
	KeyPacket       string               `json:"keyPacket"`
	Content         requests.ItemContent `json:"content"`
	SignerAddressID string               `json:"signerAddressId"`
	ModifiedAt      time.Time            `json:"modifiedAt"`
}

// Keys decodes the item key and content key packet.
func (it Item) Keys(p pgp.Provider) (keys.ItemKey, keys.KeyPacket, error) {
	encrypted, err := p.Base64Decode(it.ItemKey)
	if err != nil {
		return keys.ItemKey{}, keys.KeyPacket{}, fmt.Errorf("item %s key: %w", it.ItemID, err)
	}
	packet, err := p.Base64Decode(it.KeyPacket)
	if err != nil {
		return keys.ItemKey{}, keys.KeyPacket{}, fmt.Errorf("item %s key packet: %w", it.ItemID, err)
	}
	return keys.ItemKey{
			ItemID:       it.ItemID,
			Rotation:     it.KeyRotation,
			PublicKey:    it.ItemKeyPublic,
			EncryptedKey: encrypted,
		}, keys.KeyPacket{
			RotationID: it.KeyRotation,
			KeyPacket:  packet,
		}, nil
}

// Invite is a pending invitation of TargetAddressID to a share.
type Invite struct {
	InviteID         string                        `json:"inviteId"`
	ShareID          string                        `json:"shareId"`
	InviterAddressID string                        `json:"inviterAddressId"`
	TargetAddressID  string                        `json:"targetAddressId"`
	Keys             []requests.EncryptedInviteKey `json:"keys"`
	CreatedAt        time.Time                     `json:"createdAt"`
}
