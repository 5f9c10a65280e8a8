package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/vaultkey/internal/configs"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keystore"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/repository"
	"github.com/PolarWolf314/vaultkey/internal/utils"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// InitOptions configures the init workflow.
type InitOptions struct {
	// WorkspaceName is the name for the workspace. If empty, uses the directory name.
	WorkspaceName string
}

// InitResult contains the outcome of an init operation.
type InitResult struct {
	WorkspaceName string
	WorkspaceUUID string
	WorkspacePath string
	// CreatedPaths lists the directories made under .vaultkey.
	CreatedPaths []string

	// AddressPublished is true when the user already had an address key and
	// it was published to the new workspace.
	AddressPublished bool
}

// Init creates a workspace in the current directory.
//
// Returns ErrWorkspaceAlreadyInitialized if a .vaultkey directory already exists.
func Init(ctx context.Context, opts InitOptions) (*InitResult, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	dir := filepath.Join(wd, utils.WorkspaceDirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, kerrors.ErrWorkspaceAlreadyInitialized
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking %s: %w", dir, err)
	}

	name := opts.WorkspaceName
	if name == "" {
		name = filepath.Base(wd)
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			os.RemoveAll(dir)
		}
	}()

	configs.SetWorkspace(wd)
	settings := configs.WorkspaceVaultkeySettings
	created := []string{settings.RemotePath, settings.CachePath}
	for _, d := range created {
		if err := os.MkdirAll(d, 0700); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d, err)
		}
	}

	wc := &configs.WorkspaceConfig{
		Workspace: configs.Workspace{UUID: configs.NewID(), Name: name},
		Vaults:    make(map[string]configs.VaultEntry),
	}
	if err := configs.SaveWorkspaceConfig(wc); err != nil {
		return nil, err
	}

	result := &InitResult{
		WorkspaceName: name,
		WorkspaceUUID: wc.Workspace.UUID,
		WorkspacePath: wd,
		CreatedPaths:  created,
	}

	user, err := configs.LoadUserConfig()
	if err != nil {
		return nil, fmt.Errorf("loading user config: %w", err)
	}
	if user.User.AddressID != "" {
		published, err := publishStoredAddress(ctx, user)
		if err != nil {
			return nil, err
		}
		result.AddressPublished = published
	}

	cleanupNeeded = false
	return result, nil
}

// publishStoredAddress publishes the public key of the configured address,
// which needs no passphrase.
func publishStoredAddress(ctx context.Context, user *configs.UserConfig) (bool, error) {
	store := keystore.New(configs.UserVaultkeySettings.UserKeysPath, pgp.New(), user.KDF)
	public, err := store.PublicKey(user.User.AddressID)
	if errors.Is(err, kerrors.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = newRemote().PutAddress(ctx, repository.Address{
		AddressID: user.User.AddressID,
		Email:     user.User.Email,
		PublicKey: public,
	})
	return err == nil, err
}
