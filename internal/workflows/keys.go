package workflows

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/PolarWolf314/vaultkey/internal/configs"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/keystore"
	"github.com/PolarWolf314/vaultkey/internal/pgp"
	"github.com/PolarWolf314/vaultkey/internal/utils"
)

// KeysGenerateOptions configures the keys generate workflow.
type KeysGenerateOptions struct {
	// Email identifies the address. Defaults to the email in the user config.
	Email string

	// Passphrase locks the private key on disk.
	Passphrase []byte
}

// KeysGenerateResult contains the outcome of a keys generate operation.
type KeysGenerateResult struct {
	AddressID string
	Email     string
	KeyDir    string

	// Published is true when the key was published to the current workspace.
	Published bool
}

// KeysGenerate creates the user's address key and records it in the user
// config.
//
// Returns ErrInvalidRequest if the email is not valid.
// Returns ErrKeyExists if the user already has an address key.
func KeysGenerate(ctx context.Context, opts KeysGenerateOptions) (*KeysGenerateResult, error) {
	if err := configs.InitWorkspaceSettings(); err != nil {
		return nil, fmt.Errorf("initializing workspace settings: %w", err)
	}

	user, err := configs.EnsureUserConfig()
	if err != nil {
		return nil, fmt.Errorf("ensuring user config: %w", err)
	}

	email := opts.Email
	if email == "" {
		email = user.User.Email
	}
	if !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email %q", kerrors.ErrInvalidRequest, email)
	}

	keysDir := configs.UserVaultkeySettings.UserKeysPath
	store := keystore.New(keysDir, pgp.New(), user.KDF)
	if user.User.AddressID != "" {
		if _, err := store.Metadata(user.User.AddressID); err == nil {
			return nil, fmt.Errorf("%w: address %s", kerrors.ErrKeyExists, user.User.AddressID)
		}
	}

	addressID := configs.NewID()
	if _, err := store.Generate(addressID, email, opts.Passphrase); err != nil {
		return nil, err
	}

	user.User.AddressID = addressID
	user.User.Email = email
	if err := configs.SaveUserConfig(user); err != nil {
		return nil, err
	}

	result := &KeysGenerateResult{
		AddressID: addressID,
		Email:     email,
		KeyDir:    filepath.Join(keysDir, addressID),
	}

	if configs.WorkspaceVaultkeySettings.WorkspacePath != "" {
		published, err := publishStoredAddress(ctx, user)
		if err != nil {
			return nil, err
		}
		result.Published = published
	}
	return result, nil
}
