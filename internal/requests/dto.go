package requests

// Wire DTOs. Binary fields are standard base64; rotations and revisions are
// plain integers. They are transient and never stored as domain state.

type CreateVaultRequest struct {
	AddressID            string `json:"addressId" validate:"required"`
	ShareID              string `json:"shareId" validate:"required"`
	EncryptedVaultKey    string `json:"encryptedVaultKey" validate:"required,base64"`
	VaultKeyPublic       string `json:"vaultKeyPublic" validate:"required"`
	Content              string `json:"content" validate:"required,base64"`
	ContentFormatVersion int    `json:"contentFormatVersion" validate:"gte=1"`
	KeyPacket            string `json:"keyPacket" validate:"required,base64"`
	VaultKeySignature    string `json:"vaultKeySignature" validate:"required,base64"`
	AddressSignature     string `json:"addressSignature" validate:"required,base64"`
	KeyRotation          int64  `json:"keyRotation" validate:"gte=0"`
}

type CreateItemRequest struct {
	ItemID               string `json:"itemId" validate:"required"`
	ItemKey              string `json:"itemKey" validate:"required,base64"`
	ItemKeyPublic        string `json:"itemKeyPublic" validate:"required"`
	KeyRotation          int64  `json:"keyRotation" validate:"gte=0"`
	Content              string `json:"content" validate:"required,base64"`
	ContentFormatVersion int    `json:"contentFormatVersion" validate:"gte=1"`
	KeyPacket            string `json:"keyPacket" validate:"required,base64"`
	ItemKeySignature     string `json:"itemKeySignature" validate:"required,base64"`
	AddressSignature     string `json:"addressSignature" validate:"required,base64"`
}

type UpdateItemRequest struct {
	ItemID               string `json:"itemId" validate:"required"`
	KeyRotation          int64  `json:"keyRotation" validate:"gte=0"`
	LastRevision         int64  `json:"lastRevision" validate:"gte=0"`
	Content              string `json:"content" validate:"required,base64"`
	ContentFormatVersion int    `json:"contentFormatVersion" validate:"gte=1"`
	ItemKeySignature     string `json:"itemKeySignature" validate:"required,base64"`
	AddressSignature     string `json:"addressSignature" validate:"required,base64"`
}

// EncryptedInviteKey is one share key re-encrypted to the invitee and signed
// by the inviter's address key. KeySignature is the share key's own
// signature over Key, ShareID and KeyRotation.
type EncryptedInviteKey struct {
	Key          string `json:"key" validate:"required,base64"`
	KeyRotation  int64  `json:"keyRotation" validate:"gte=0"`
	KeySignature string `json:"keySignature" validate:"required,base64"`
}

// AcceptedInviteKey is an accepted share key re-wrapped to the invitee's
// own address key.
type AcceptedInviteKey struct {
	Key         string `json:"key" validate:"required,base64"`
	KeyPublic   string `json:"keyPublic" validate:"required"`
	KeyRotation int64  `json:"keyRotation" validate:"gte=0"`
}

type AcceptInviteRequest struct {
	ShareID string              `json:"shareId" validate:"required"`
	Keys    []AcceptedInviteKey `json:"keys" validate:"required,min=1,dive"`
}

type RotatedItemKey struct {
	ItemID    string `json:"itemId" validate:"required"`
	ItemKey   string `json:"itemKey" validate:"required,base64"`
	KeyPacket string `json:"keyPacket" validate:"required,base64"`
}

type RotateVaultRequest struct {
	ShareID           string           `json:"shareId" validate:"required"`
	EncryptedVaultKey string           `json:"encryptedVaultKey" validate:"required,base64"`
	VaultKeyPublic    string           `json:"vaultKeyPublic" validate:"required"`
	KeyRotation       int64            `json:"keyRotation" validate:"gt=0"`
	VaultKeyPacket    string           `json:"vaultKeyPacket" validate:"required,base64"`
	VaultKeySignature string           `json:"vaultKeySignature" validate:"required,base64"`
	AddressSignature  string           `json:"addressSignature" validate:"required,base64"`
	Items             []RotatedItemKey `json:"items" validate:"dive"`
}
