package configs

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/PolarWolf314/vaultkey/internal/utils"
)

// SaveTOML saves a struct to a TOML file, replacing it atomically.
func SaveTOML(filePath string, data interface{}) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return utils.WriteFileAtomic(filePath, buf.Bytes(), 0600)
}

// LoadTOML loads a TOML file into a struct.
func LoadTOML(filePath string, data interface{}) error {
	_, err := toml.DecodeFile(filePath, data)
	return err
}
