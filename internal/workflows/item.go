package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/vaultkey/internal/audit"
	"github.com/PolarWolf314/vaultkey/internal/codec"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
)

// ItemFields are the user-editable fields of an item.
type ItemFields struct {
	Name string
	Note string

	// Login fields. An item with any of these set is a login.
	Username string
	Password string
	URLs     []string
	TOTPURI  string
}

func (f ItemFields) isLogin() bool {
	return f.Username != "" || f.Password != "" || len(f.URLs) > 0 || f.TOTPURI != ""
}

func (f ItemFields) contents() codec.ItemContents {
	c := codec.ItemContents{
		Metadata: codec.ItemMetadata{Name: f.Name, Note: f.Note},
		Content:  codec.Note{},
	}
	if f.isLogin() {
		c.Content = codec.Login{Username: f.Username, Password: f.Password, URLs: f.URLs, TOTPURI: f.TOTPURI}
	}
	return c
}

// ItemCreateOptions configures the item create workflow.
type ItemCreateOptions struct {
	SessionOptions
	ItemFields

	Vault string
}

// ItemResult describes an item after a workflow touched it.
type ItemResult struct {
	ShareID  string
	ItemID   string
	Revision int64
	Rotation int64
	Signer   string
	Contents codec.ItemContents
}

// ItemCreate encrypts a new item into a vault.
//
// Returns ErrInvalidRequest if the name is empty.
// Returns ErrNoUsableKey if the user is not a member of the vault.
func ItemCreate(ctx context.Context, opts ItemCreateOptions) (*ItemResult, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: item name is required", kerrors.ErrInvalidRequest)
	}

	s, err := openSession(ctx, opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	shareID, err := s.resolveVault(opts.Vault)
	if err != nil {
		return nil, err
	}

	contents := opts.contents()
	it, err := s.repo.CreateItem(ctx, shareID, contents)
	if err != nil {
		return nil, checkSecurity(shareID, "", err)
	}

	e := s.entry(audit.OpCreateItem).WithRotation(it.KeyRotation)
	e.ShareID = shareID
	e.ItemID = it.ItemID
	audit.Log(e)

	return &ItemResult{
		ShareID:  shareID,
		ItemID:   it.ItemID,
		Revision: it.Revision,
		Rotation: it.KeyRotation,
		Signer:   it.SignerAddressID,
		Contents: contents,
	}, nil
}

// ItemOpenOptions configures the item open workflow.
type ItemOpenOptions struct {
	SessionOptions

	Vault  string
	ItemID string
}

// ItemOpen verifies and decrypts the latest revision of an item.
//
// Returns ErrItemNotFound if the item does not exist.
// Returns ErrSignatureVerification or ErrUntrusted if the item fails verification. The
// failure is recorded in the audit log.
func ItemOpen(ctx context.Context, opts ItemOpenOptions) (*ItemResult, error) {
	s, err := openSession(ctx, opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	shareID, err := s.resolveVault(opts.Vault)
	if err != nil {
		return nil, err
	}

	contents, it, err := s.repo.OpenItem(ctx, shareID, opts.ItemID)
	if err != nil {
		return nil, checkSecurity(shareID, opts.ItemID, err)
	}
	return &ItemResult{
		ShareID:  shareID,
		ItemID:   it.ItemID,
		Revision: it.Revision,
		Rotation: it.KeyRotation,
		Signer:   it.SignerAddressID,
		Contents: contents,
	}, nil
}

// ItemChanges lists the fields to change. Nil fields keep their value.
type ItemChanges struct {
	Name     *string
	Note     *string
	Username *string
	Password *string
	URLs     []string
	TOTPURI  *string
}

func (c ItemChanges) empty() bool {
	return c.Name == nil && c.Note == nil && c.Username == nil && c.Password == nil && c.URLs == nil && c.TOTPURI == nil
}

func (c ItemChanges) loginChanged() bool {
	return c.Username != nil || c.Password != nil || c.URLs != nil || c.TOTPURI != nil
}

// apply returns contents with the changes applied. Login changes turn a
// note into a login.
func (c ItemChanges) apply(contents codec.ItemContents) (codec.ItemContents, error) {
	if c.Name != nil {
		contents.Metadata.Name = *c.Name
	}
	if c.Note != nil {
		contents.Metadata.Note = *c.Note
	}
	if !c.loginChanged() {
		return contents, nil
	}

	var login codec.Login
	switch current := contents.Content.(type) {
	case codec.Login:
		login = current
	case codec.Note, nil:
	default:
		return contents, fmt.Errorf("%w: cannot set login fields on a %s item", kerrors.ErrInvalidRequest, current.Type())
	}
	if c.Username != nil {
		login.Username = *c.Username
	}
	if c.Password != nil {
		login.Password = *c.Password
	}
	if c.URLs != nil {
		login.URLs = c.URLs
	}
	if c.TOTPURI != nil {
		login.TOTPURI = *c.TOTPURI
	}
	contents.Content = login
	return contents, nil
}

// ItemUpdateOptions configures the item update workflow.
type ItemUpdateOptions struct {
	SessionOptions
	ItemChanges

	Vault  string
	ItemID string
}

// ItemUpdate applies changes on top of the latest revision of an item. If
// another member writes the item in between, the changes are reapplied to
// the newer revision a bounded number of times.
//
// Returns ErrInvalidRequest if no change was given.
// Returns ErrStaleRevision if the item kept changing during every attempt.
func ItemUpdate(ctx context.Context, opts ItemUpdateOptions) (*ItemResult, error) {
	if opts.ItemChanges.empty() {
		return nil, fmt.Errorf("%w: nothing to update", kerrors.ErrInvalidRequest)
	}

	s, err := openSession(ctx, opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	shareID, err := s.resolveVault(opts.Vault)
	if err != nil {
		return nil, err
	}

	var written codec.ItemContents
	it, err := s.repo.UpdateWithRefetch(ctx, shareID, opts.ItemID, func(current codec.ItemContents) (codec.ItemContents, error) {
		next, err := opts.ItemChanges.apply(current)
		written = next
		return next, err
	})
	if err != nil {
		return nil, checkSecurity(shareID, opts.ItemID, err)
	}

	e := s.entry(audit.OpUpdateItem).WithRotation(it.KeyRotation)
	e.ShareID = shareID
	e.ItemID = it.ItemID
	e.Revision = it.Revision
	audit.Log(e)

	return &ItemResult{
		ShareID:  shareID,
		ItemID:   it.ItemID,
		Revision: it.Revision,
		Rotation: it.KeyRotation,
		Signer:   it.SignerAddressID,
		Contents: written,
	}, nil
}
