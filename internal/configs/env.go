package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides. They may also be set in .vaultkey/.env.
const (
	EnvKeysDir    = "VAULTKEY_KEYS_DIR"
	EnvConfigDir  = "VAULTKEY_CONFIG_DIR"
	EnvAddressID  = "VAULTKEY_ADDRESS_ID"
	EnvPassphrase = "VAULTKEY_PASSPHRASE"
	EnvKDFTime    = "VAULTKEY_KDF_TIME"
	EnvKDFMemory  = "VAULTKEY_KDF_MEMORY_KIB"
)

const envPrefix = "VAULTKEY_"

// LoadEnvOverrides reads VAULTKEY_* variables from the dotenv file at path,
// without overriding variables already set in the process environment, and
// applies the path overrides to the user settings. A missing file is not an
// error.
func LoadEnvOverrides(path string) error {
	if _, err := os.Stat(path); err == nil {
		values, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range values {
			if !strings.HasPrefix(k, envPrefix) {
				continue
			}
			if _, set := os.LookupEnv(k); set {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return fmt.Errorf("failed to set %s: %w", k, err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	UserVaultkeySettings.UserKeysPath = getEnv(EnvKeysDir, UserVaultkeySettings.UserKeysPath)
	UserVaultkeySettings.UserConfigsPath = getEnv(EnvConfigDir, UserVaultkeySettings.UserConfigsPath)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsUint32(key string, defaultValue uint32) uint32 {
	if value, err := strconv.ParseUint(getEnv(key, ""), 10, 32); err == nil {
		return uint32(value)
	}
	return defaultValue
}
