package utils

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// WorkspaceDirName is the directory marking a vaultkey workspace.
const WorkspaceDirName = ".vaultkey"

// FindWorkspaceRoot walks up from the working directory to the nearest
// directory containing .vaultkey. Returns an empty string when none is found
// below the user's home directory.
func FindWorkspaceRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return FindWorkspaceRootFrom(currentDir)
}

// FindWorkspaceRootFrom is FindWorkspaceRoot starting at dir.
func FindWorkspaceRootFrom(dir string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	currentDir := dir
	for {
		// Stop searching at one level above home directory
		if currentDir == path.Join(homeDir, "..") {
			return "", nil
		}

		fileInfo, err := os.Stat(filepath.Join(currentDir, WorkspaceDirName))
		if err == nil {
			if fileInfo.IsDir() {
				return currentDir, nil
			}
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("error checking for %s directory at %s: %w", WorkspaceDirName, currentDir, err)
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", nil
		}
		currentDir = parentDir
	}
}

// WriteFileAtomic writes data to a temporary file next to name and renames
// it into place, so readers see either the old or the new contents.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}
