package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/PolarWolf314/vaultkey/internal/utils"
)

type UserConfig struct {
	User User `toml:"user"`
	KDF  KDF  `toml:"kdf"`
}

type User struct {
	Email     string `toml:"email"`
	UUID      string `toml:"user_uuid"`
	AddressID string `toml:"address_id"`
}

// KDF holds the Argon2id parameters of the device key.
type KDF struct {
	Time      uint32 `toml:"time"`
	MemoryKiB uint32 `toml:"memory_kib"`
	Threads   uint8  `toml:"threads"`
}

// DefaultKDF follows the RFC 9106 second recommended option.
func DefaultKDF() KDF {
	return KDF{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

type WorkspaceConfig struct {
	Workspace Workspace             `toml:"workspace"`
	Vaults    map[string]VaultEntry `toml:"vaults"`
}

type Workspace struct {
	UUID string `toml:"workspace_uuid"`
	Name string `toml:"name"`
}

// VaultEntry is the local index of a vault, keyed by share id.
type VaultEntry struct {
	Name      string    `toml:"name"`
	Rotation  int64     `toml:"rotation"`
	CreatedAt time.Time `toml:"created_at"`
}

var (
	GlobalUserConfig      *UserConfig
	GlobalWorkspaceConfig *WorkspaceConfig
)

func userConfigPath() string {
	return filepath.Join(UserVaultkeySettings.UserConfigsPath, "config.toml")
}

// LoadUserConfig loads the user configuration, filling unset KDF parameters
// with defaults and environment overrides.
func LoadUserConfig() (*UserConfig, error) {
	config := &UserConfig{}

	if _, err := os.Stat(userConfigPath()); err == nil {
		if err := LoadTOML(userConfigPath(), config); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to check user config: %w", err)
	}

	def := DefaultKDF()
	if config.KDF.Time == 0 {
		config.KDF.Time = def.Time
	}
	if config.KDF.MemoryKiB == 0 {
		config.KDF.MemoryKiB = def.MemoryKiB
	}
	if config.KDF.Threads == 0 {
		config.KDF.Threads = def.Threads
	}
	config.KDF.Time = getEnvAsUint32(EnvKDFTime, config.KDF.Time)
	config.KDF.MemoryKiB = getEnvAsUint32(EnvKDFMemory, config.KDF.MemoryKiB)
	config.User.AddressID = getEnv(EnvAddressID, config.User.AddressID)

	return config, nil
}

func SaveUserConfig(config *UserConfig) error {
	if err := SaveTOML(userConfigPath(), config); err != nil {
		return fmt.Errorf("failed to save user config: %w", err)
	}
	return nil
}

// NewID returns a random identifier for users, workspaces, vaults and items.
func NewID() string {
	return uuid.New().String()
}

// EnsureUserConfig ensures the user configuration exists and has a UUID.
func EnsureUserConfig() (*UserConfig, error) {
	config, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}

	if config.User.UUID == "" {
		config.User.UUID = NewID()
		if err := SaveUserConfig(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func workspaceConfigPath() string {
	return filepath.Join(WorkspaceVaultkeySettings.WorkspacePath, utils.WorkspaceDirName, "config.toml")
}

// LoadWorkspaceConfig loads the workspace configuration.
// Note: Caller should ensure InitWorkspaceSettings is called before calling this function.
func LoadWorkspaceConfig() (*WorkspaceConfig, error) {
	config := &WorkspaceConfig{
		Vaults: make(map[string]VaultEntry),
	}

	if _, err := os.Stat(workspaceConfigPath()); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(workspaceConfigPath(), config); err != nil {
		return nil, fmt.Errorf("failed to load workspace config: %w", err)
	}
	if config.Vaults == nil {
		config.Vaults = make(map[string]VaultEntry)
	}

	return config, nil
}

// SaveWorkspaceConfig saves the workspace configuration.
// Note: Caller should ensure InitWorkspaceSettings is called before calling this function.
func SaveWorkspaceConfig(config *WorkspaceConfig) error {
	if err := SaveTOML(workspaceConfigPath(), config); err != nil {
		return fmt.Errorf("failed to save workspace config: %w", err)
	}
	return nil
}

// ResolveVault returns the share id of ref, which is either a share id or a
// vault name. Names must be unambiguous.
func (wc *WorkspaceConfig) ResolveVault(ref string) (string, bool) {
	if _, ok := wc.Vaults[ref]; ok {
		return ref, true
	}

	var matches []string
	for id, v := range wc.Vaults {
		if v.Name == ref {
			matches = append(matches, id)
		}
	}
	if len(matches) != 1 {
		return "", false
	}
	return matches[0], true
}

// VaultIDs returns the share ids of all known vaults, sorted by name.
func (wc *WorkspaceConfig) VaultIDs() []string {
	ids := make([]string, 0, len(wc.Vaults))
	for id := range wc.Vaults {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := wc.Vaults[ids[i]], wc.Vaults[ids[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return ids[i] < ids[j]
	})
	return ids
}
