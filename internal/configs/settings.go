package configs

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/vaultkey/internal/utils"
)

type UserSettings struct {
	UserKeysPath    string
	UserConfigsPath string
	Username        string
}

type WorkspaceSettings struct {
	WorkspaceName string
	WorkspacePath string
	// RemotePath holds the file-backed vault, item and invite records.
	RemotePath string
	// CachePath holds share keys encrypted with the device key.
	CachePath string
	AuditPath string
}

var (
	UserVaultkeySettings      *UserSettings
	WorkspaceVaultkeySettings *WorkspaceSettings
)

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("error getting home directory: %s", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("error getting config directory: %s", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	username, err := utils.GetUsername()
	if err != nil {
		log.Fatalf("error getting username: %s", err)
	}

	// This is independent of what workspace you are in, so it is ok to init here
	UserVaultkeySettings = &UserSettings{
		UserKeysPath:    filepath.Join(dataDir, "vaultkey", "keys"),
		UserConfigsPath: filepath.Join(configDir, "vaultkey"),
		Username:        username,
	}
	WorkspaceVaultkeySettings = &WorkspaceSettings{}
}

// InitWorkspaceSettings locates the workspace containing the working
// directory and applies its .env overrides.
func InitWorkspaceSettings() error {
	root, err := utils.FindWorkspaceRoot()
	if err != nil {
		return fmt.Errorf("error getting workspace root: %w", err)
	}
	if root == "" {
		WorkspaceVaultkeySettings = &WorkspaceSettings{}
		return nil
	}

	SetWorkspace(root)
	if err := LoadEnvOverrides(filepath.Join(root, utils.WorkspaceDirName, ".env")); err != nil {
		return err
	}
	return nil
}

// SetWorkspace points the workspace settings at root.
func SetWorkspace(root string) {
	dir := filepath.Join(root, utils.WorkspaceDirName)
	WorkspaceVaultkeySettings = &WorkspaceSettings{
		WorkspaceName: filepath.Base(root),
		WorkspacePath: root,
		RemotePath:    filepath.Join(dir, "remote"),
		CachePath:     filepath.Join(dir, "cache"),
		AuditPath:     filepath.Join(dir, "audit.jsonl"),
	}
}
