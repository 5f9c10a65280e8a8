package workflows

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/PolarWolf314/vaultkey/internal/audit"
	"github.com/PolarWolf314/vaultkey/internal/configs"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keystore"
	logger "github.com/PolarWolf314/vaultkey/internal/logging"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/repository"
	"github.com/PolarWolf314/vaultkey/internal/requests"
)

// SessionOptions are shared by every workflow that unlocks the address key.
type SessionOptions struct {
	// Passphrase unlocks the address key and derives the device key.
	Passphrase []byte

	// Verbose enables verbose output.
	Verbose bool

	// Debug enables debug output.
	Debug bool
}

func (o SessionOptions) logger() logger.Logger {
	return logger.Logger{Verbose: o.Verbose, Debug: o.Debug}
}

// session is an unlocked address key inside a workspace.
type session struct {
	user      *configs.UserConfig
	workspace *configs.WorkspaceConfig
	store     *keystore.Store
	repo      *repository.Repository
	log       logger.Logger
}

func requireWorkspace() error {
	if err := configs.InitWorkspaceSettings(); err != nil {
		return fmt.Errorf("initializing workspace settings: %w", err)
	}
	if configs.WorkspaceVaultkeySettings.WorkspacePath == "" {
		return kerrors.ErrWorkspaceNotInitialized
	}
	return nil
}

func newRemote() *repository.StoreRemote {
	return repository.NewFileRemote(configs.WorkspaceVaultkeySettings.RemotePath)
}

// openSession unlocks the user's address key and connects it to the
// workspace remote.
//
// Returns ErrWorkspaceNotInitialized outside a workspace.
// Returns ErrUserNotConfigured if no address key has been generated.
// Returns ErrKeyUnlock if the passphrase is wrong.
func openSession(ctx context.Context, opts SessionOptions) (*session, error) {
	if err := requireWorkspace(); err != nil {
		return nil, err
	}

	user, err := configs.LoadUserConfig()
	if err != nil {
		return nil, fmt.Errorf("loading user config: %w", err)
	}
	if user.User.AddressID == "" {
		return nil, kerrors.ErrUserNotConfigured
	}

	workspace, err := configs.LoadWorkspaceConfig()
	if err != nil {
		return nil, fmt.Errorf("loading workspace config: %w", err)
	}

	log := opts.logger()
	p := pgp.New()
	store := keystore.New(configs.UserVaultkeySettings.UserKeysPath, p, user.KDF)

	log.Debugf("Opening address key %s", user.User.AddressID)
	address, err := store.Open(user.User.AddressID, opts.Passphrase)
	if err != nil {
		return nil, err
	}
	device, err := store.DeviceContext()
	if err != nil {
		store.Close()
		return nil, err
	}

	// Caches are sealed per address; several users may share a workspace.
	cacheDir := filepath.Join(configs.WorkspaceVaultkeySettings.CachePath, address.ID)
	repo := repository.New(newRemote(), requests.NewBuilder(p, log), repository.NewCache(cacheDir), address.ID, address, log)
	repo.ShareKeys = repository.NewShareKeyCache(cacheDir, p, device)

	s := &session{user: user, workspace: workspace, store: store, repo: repo, log: log}
	if err := s.publishAddress(ctx, address.PublicKey()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	s.store.Close()
}

// publishAddress makes the address key known to the remote the first time
// it is used in a workspace.
func (s *session) publishAddress(ctx context.Context, public string) error {
	_, err := s.repo.Remote.GetAddress(ctx, s.repo.AddressID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, kerrors.ErrKeyNotFound) {
		return err
	}
	s.log.Infof("Publishing address %s to the workspace", s.repo.AddressID)
	return s.repo.Remote.PutAddress(ctx, repository.Address{
		AddressID: s.repo.AddressID,
		Email:     s.user.User.Email,
		PublicKey: public,
	})
}

// resolveVault maps a vault name or share id to a share id. Unknown refs
// are passed through as share ids.
func (s *session) resolveVault(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: no vault given", kerrors.ErrVaultNotFound)
	}
	if id, ok := s.workspace.ResolveVault(ref); ok {
		return id, nil
	}
	return ref, nil
}

// rememberVault records a vault in the workspace config.
func (s *session) rememberVault(shareID string, name string, rotation int64) {
	entry, ok := s.workspace.Vaults[shareID]
	if ok && entry.Name == name && entry.Rotation == rotation {
		return
	}
	if !ok {
		entry.CreatedAt = nowUTC()
	}
	entry.Name = name
	entry.Rotation = rotation
	s.workspace.Vaults[shareID] = entry
	if err := configs.SaveWorkspaceConfig(s.workspace); err != nil {
		s.log.Warnf("Could not update workspace config: %v", err)
	}
}

// entry returns an audit entry for op with the user fields populated.
func (s *session) entry(op string) audit.Entry {
	e := audit.LogWithUser(op)
	if e.User == "" {
		e.User = s.user.User.Email
		e.UserUUID = s.user.User.UUID
	}
	return e
}

// checkSecurity records err as a security event when it is one.
func checkSecurity(shareID, itemID string, err error) error {
	if kerrors.Classify(err) == kerrors.KindSecurity {
		audit.SecurityEvent(shareID, itemID, err)
	}
	return err
}
