package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/vaultkey/internal/audit"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
)

// InviteEncryptOptions configures the invite encrypt workflow.
type InviteEncryptOptions struct {
	SessionOptions

	Vault string

	// Target is the address id of the invitee. The invitee must have run
	// keys generate in this workspace.
	Target string
}

// InviteEncryptResult contains the outcome of an invite encrypt operation.
type InviteEncryptResult struct {
	InviteID string
	ShareID  string
	Target   string
	Keys     int
}

// InviteEncrypt encrypts every vault key the user holds to the target
// address and stores the invite.
//
// Returns ErrKeyNotFound if the target address is unknown.
// Returns ErrNoUsableKey if the user is not a member of the vault.
func InviteEncrypt(ctx context.Context, opts InviteEncryptOptions) (*InviteEncryptResult, error) {
	if opts.Target == "" {
		return nil, fmt.Errorf("%w: invite target is required", kerrors.ErrInvalidRequest)
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

	inv, err := s.repo.Invite(ctx, shareID, opts.Target)
	if err != nil {
		return nil, checkSecurity(shareID, "", err)
	}

	e := s.entry(audit.OpInviteEncrypt)
	e.ShareID = shareID
	e.TargetUser = opts.Target
	e.KeysCount = len(inv.Keys)
	audit.Log(e)

	return &InviteEncryptResult{InviteID: inv.InviteID, ShareID: shareID, Target: opts.Target, Keys: len(inv.Keys)}, nil
}

// InviteAcceptOptions configures the invite accept workflow.
type InviteAcceptOptions struct {
	SessionOptions

	InviteID string
}

// InviteAcceptResult contains the outcome of an invite accept operation.
type InviteAcceptResult struct {
	ShareID  string
	Name     string
	Inviter  string
	Rotation int64
}

// InviteAccept verifies an invite addressed to the user and joins the
// vault. Nothing is applied unless every key in the invite verifies.
//
// Returns ErrInviteNotFound if the invite does not exist or is addressed to
// someone else.
// Returns ErrInviteAccept if any key fails verification. The failure is
// recorded in the audit log.
func InviteAccept(ctx context.Context, opts InviteAcceptOptions) (*InviteAcceptResult, error) {
	if opts.InviteID == "" {
		return nil, fmt.Errorf("%w: invite id is required", kerrors.ErrInvalidRequest)
	}

	s, err := openSession(ctx, opts.SessionOptions)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	inv, err := s.repo.Remote.GetInvite(ctx, opts.InviteID)
	if err != nil {
		return nil, err
	}

	share, err := s.repo.AcceptInvite(ctx, opts.InviteID)
	if err != nil {
		return nil, checkSecurity(inv.ShareID, "", err)
	}

	result := &InviteAcceptResult{ShareID: share.ShareID, Inviter: inv.InviterAddressID, Rotation: share.Rotation()}
	meta, _, err := s.repo.OpenVault(ctx, share.ShareID)
	if err != nil {
		s.log.Warnf("Joined vault %s but its metadata could not be opened: %v", share.ShareID, err)
		checkSecurity(share.ShareID, "", err)
	} else {
		result.Name = meta.Name
	}
	s.rememberVault(share.ShareID, result.Name, share.Rotation())

	e := s.entry(audit.OpInviteAccept).WithRotation(share.Rotation())
	e.ShareID = share.ShareID
	e.Inviter = inv.InviterAddressID
	e.KeysCount = len(inv.Keys)
	audit.Log(e)

	return result, nil
}
