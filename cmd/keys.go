package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/vaultkey/internal/configs"
	"github.com/PolarWolf314/vaultkey/internal/ui"
	"github.com/PolarWolf314/vaultkey/internal/utils"
	"github.com/PolarWolf314/vaultkey/internal/workflows"
)

var keysEmail string

func init() {
	keysGenerateCmd.Flags().StringVarP(&keysEmail, "email", "e", "", "email of the address")
	keysCmd.AddCommand(keysGenerateCmd)
}

func resetKeysCommandState() {
	keysEmail = ""
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage your address key",
}

// newPassphrase reads a passphrase twice when prompting.
func newPassphrase() ([]byte, error) {
	if v, ok := os.LookupEnv(configs.EnvPassphrase); ok && v != "" {
		return []byte(v), nil
	}
	first, err := utils.ResolvePassphrase("New passphrase: ", configs.EnvPassphrase)
	if err != nil {
		return nil, err
	}
	second, err := utils.ResolvePassphrase("Confirm passphrase: ", configs.EnvPassphrase)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(second)
	if !bytes.Equal(first, second) {
		memguard.WipeBytes(first)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate your passphrase-locked address key",
	Long: `Generates an address key and locks it with a passphrase. The passphrase
also derives the device key that seals the local key caches.

Set VAULTKEY_PASSPHRASE to skip the prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys generate command")
		pass, err := newPassphrase()
		if err != nil {
			return err
		}
		defer memguard.WipeBytes(pass)

		s, cleanup := startSpinner("Generating address key...")
		defer cleanup()

		result, err := workflows.KeysGenerate(context.Background(), workflows.KeysGenerateOptions{
			Email:      keysEmail,
			Passphrase: pass,
		})
		if err != nil {
			return finish(s, err)
		}

		msg := ui.Success.Sprint("✓") + " Generated address " + ui.Highlight.Sprint(result.AddressID) +
			" for " + ui.Highlight.Sprint(result.Email) +
			"\n" + ui.Info.Sprint("→") + " Key stored in " + ui.Path.Sprint(result.KeyDir)
		if result.Published {
			msg += "\n" + ui.Info.Sprint("→") + " Share your address id so others can invite you"
		}
		s.FinalMSG = msg
		return nil
	},
}
