package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/vaultkey/internal/audit"
	"github.com/PolarWolf314/vaultkey/internal/codec"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
)

// VaultCreateOptions configures the vault create workflow.
type VaultCreateOptions struct {
	SessionOptions

	Name        string
	Description string
	Color       int32
	Icon        int32
}

// VaultCreateResult contains the outcome of a vault create operation.
type VaultCreateResult struct {
	ShareID  string
	Name     string
	Rotation int64
}

// VaultCreate creates a vault owned by the user's address.
//
// Returns ErrInvalidRequest if the name is empty.
func VaultCreate(ctx context.Context, opts VaultCreateOptions) (*VaultCreateResult, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: vault name is required", kerrors.ErrInvalidRequest)
	}

	s, err := openSession(ctx, opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	meta := codec.VaultMetadata{Name: opts.Name, Description: opts.Description}
	if opts.Color != 0 || opts.Icon != 0 {
		meta.Display = &codec.VaultDisplay{Color: opts.Color, Icon: opts.Icon}
	}

	share, err := s.repo.CreateVault(ctx, meta)
	if err != nil {
		return nil, err
	}
	s.rememberVault(share.ShareID, opts.Name, share.Rotation())

	e := s.entry(audit.OpCreateVault).WithRotation(share.Rotation())
	e.ShareID = share.ShareID
	audit.Log(e)

	return &VaultCreateResult{ShareID: share.ShareID, Name: opts.Name, Rotation: share.Rotation()}, nil
}

// VaultOpenOptions configures the vault open workflow.
type VaultOpenOptions struct {
	SessionOptions

	// Vault is a vault name from the workspace config or a share id.
	Vault string
}

// ItemSummary describes one item of an opened vault.
type ItemSummary struct {
	ItemID   string
	Name     string
	Type     string
	Revision int64
	Signer   string

	// Err is set when the item could not be opened. Other items are
	// still listed.
	Err error
}

// VaultOpenResult contains the outcome of a vault open operation.
type VaultOpenResult struct {
	ShareID  string
	Metadata codec.VaultMetadata
	Rotation int64
	Owner    string
	Items    []ItemSummary
}

// VaultOpen verifies and decrypts a vault and lists its items.
//
// Returns ErrNoUsableKey if the user is not a member of the vault.
// Returns ErrSignatureVerification or ErrUntrusted if the vault metadata fails verification.
func VaultOpen(ctx context.Context, opts VaultOpenOptions) (*VaultOpenResult, error) {
	s, err := openSession(ctx, opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	shareID, err := s.resolveVault(opts.Vault)
	if err != nil {
		return nil, err
	}

	meta, share, err := s.repo.OpenVault(ctx, shareID)
	if err != nil {
		return nil, checkSecurity(shareID, "", err)
	}
	s.rememberVault(shareID, meta.Name, share.Rotation())

	items, err := s.repo.Remote.ListItems(ctx, shareID)
	if err != nil {
		return nil, err
	}

	result := &VaultOpenResult{
		ShareID:  shareID,
		Metadata: meta,
		Rotation: share.Rotation(),
		Owner:    share.OwnerAddressID,
		Items:    make([]ItemSummary, 0, len(items)),
	}
	for _, it := range items {
		summary := ItemSummary{ItemID: it.ItemID, Revision: it.Revision, Signer: it.SignerAddressID}
		contents, _, err := s.repo.OpenItem(ctx, shareID, it.ItemID)
		if err != nil {
			s.log.Debugf("Item %s unavailable: %v", it.ItemID, err)
			summary.Err = checkSecurity(shareID, it.ItemID, err)
		} else {
			summary.Name = contents.Metadata.Name
			if contents.Content != nil {
				summary.Type = contents.Content.Type()
			}
		}
		result.Items = append(result.Items, summary)
	}
	return result, nil
}

// VaultRotateOptions configures the vault rotate workflow.
type VaultRotateOptions struct {
	SessionOptions

	Vault string
}

// VaultRotateResult contains the outcome of a vault rotate operation.
type VaultRotateResult struct {
	ShareID  string
	Rotation int64
	Items    int
}

// VaultRotate moves a vault to a fresh vault key. Members other than the
// user lose access until they are invited again.
//
// Returns ErrStaleRevision if another member rotated the vault concurrently.
func VaultRotate(ctx context.Context, opts VaultRotateOptions) (*VaultRotateResult, error) {
	s, err := openSession(ctx, opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	shareID, err := s.resolveVault(opts.Vault)
	if err != nil {
		return nil, err
	}

	share, err := s.repo.RotateVault(ctx, shareID)
	if err != nil {
		return nil, checkSecurity(shareID, "", err)
	}
	items, err := s.repo.Remote.ListItems(ctx, shareID)
	if err != nil {
		return nil, err
	}

	name := s.workspace.Vaults[shareID].Name
	s.rememberVault(shareID, name, share.Rotation())

	e := s.entry(audit.OpRotateVault).WithRotation(share.Rotation())
	e.ShareID = shareID
	audit.Log(e)

	return &VaultRotateResult{ShareID: shareID, Rotation: share.Rotation(), Items: len(items)}, nil
}
