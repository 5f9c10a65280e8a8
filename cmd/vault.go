package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/ui"
	"github.com/PolarWolf314/vaultkey/internal/workflows"
)

var (
	vaultDescription string
	vaultColor       int32
	vaultIcon        int32
)

func init() {
	vaultCreateCmd.Flags().StringVar(&vaultDescription, "description", "", "vault description")
	vaultCreateCmd.Flags().Int32Var(&vaultColor, "color", 0, "display color")
	vaultCreateCmd.Flags().Int32Var(&vaultIcon, "icon", 0, "display icon")

	vaultCmd.AddCommand(vaultCreateCmd)
	vaultCmd.AddCommand(vaultOpenCmd)
	vaultCmd.AddCommand(vaultRotateCmd)
}

func resetVaultCommandState() {
	vaultDescription = ""
	vaultColor = 0
	vaultIcon = 0
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Create, open and rotate vaults",
}

var vaultCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Creating vault...")
		defer cleanup()

		result, err := workflows.VaultCreate(context.Background(), workflows.VaultCreateOptions{
			SessionOptions: opts,
			Name:           args[0],
			Description:    vaultDescription,
			Color:          vaultColor,
			Icon:           vaultIcon,
		})
		if err != nil {
			return finish(s, err)
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Created vault " + ui.Highlight.Sprint(result.Name) +
			" " + ui.Muted.Sprint(result.ShareID) + " at " + ui.RotationLabel(result.Rotation)
		return nil
	},
}

var vaultOpenCmd = &cobra.Command{
	Use:   "open <vault>",
	Short: "Decrypt a vault and list its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Opening vault...")
		defer cleanup()

		result, err := workflows.VaultOpen(context.Background(), workflows.VaultOpenOptions{SessionOptions: opts, Vault: args[0]})
		if err != nil {
			return finish(s, err)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s %s %s\n", ui.Highlight.Sprint(result.Metadata.Name), ui.Muted.Sprint(result.ShareID), ui.RotationLabel(result.Rotation))
		if result.Metadata.Description != "" {
			fmt.Fprintf(&b, "  %s\n", result.Metadata.Description)
		}
		if len(result.Items) == 0 {
			b.WriteString(ui.Info.Sprint("→") + " No items yet")
		}
		for _, it := range result.Items {
			switch {
			case it.Err == nil:
				fmt.Fprintf(&b, "  %-36s  %-6s  r%-3d  %s\n", it.ItemID, it.Type, it.Revision, it.Name)
			case kerrors.Classify(it.Err) == kerrors.KindSecurity:
				fmt.Fprintf(&b, "  %-36s  %s\n", it.ItemID, ui.Security.Sprint("untrusted"))
			default:
				fmt.Fprintf(&b, "  %-36s  %s\n", it.ItemID, ui.Muted.Sprint("unavailable"))
			}
		}
		s.FinalMSG = b.String()
		return nil
	},
}

var vaultRotateCmd = &cobra.Command{
	Use:   "rotate <vault>",
	Short: "Move a vault to a new vault key",
	Long: `Generates the next vault key and rewraps every item key to it.

Other members keep the keys they had but cannot read the vault at the new
rotation until they are invited again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Rotating vault key...")
		defer cleanup()

		result, err := workflows.VaultRotate(context.Background(), workflows.VaultRotateOptions{SessionOptions: opts, Vault: args[0]})
		if err != nil {
			return finish(s, err)
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Vault " + ui.Muted.Sprint(result.ShareID) + " is now at " +
			ui.RotationLabel(result.Rotation) + fmt.Sprintf(", %d items rewrapped", result.Items) +
			hint("Run "+ui.Code.Sprint("vaultkey invite encrypt")+" to give members the new key")
		return nil
	},
}
