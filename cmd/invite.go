package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/vaultkey/internal/ui"
	"github.com/PolarWolf314/vaultkey/internal/utils"
	"github.com/PolarWolf314/vaultkey/internal/workflows"
)

var inviteVault string

func init() {
	inviteEncryptCmd.Flags().StringVar(&inviteVault, "vault", "", "vault name or share id")
	_ = inviteEncryptCmd.MarkFlagRequired("vault")

	inviteCmd.AddCommand(inviteEncryptCmd)
	inviteCmd.AddCommand(inviteAcceptCmd)
}

func resetInviteCommandState() {
	inviteVault = ""
}

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Share a vault with another address",
}

var inviteEncryptCmd = &cobra.Command{
	Use:   "encrypt <address-id>",
	Short: "Encrypt the vault keys to another address",
	Long: `Encrypts every vault key you hold to the target address and signs each
key. The target accepts with the printed invite id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Encrypting invite...")
		defer cleanup()

		result, err := workflows.InviteEncrypt(context.Background(), workflows.InviteEncryptOptions{
			SessionOptions: opts,
			Vault:          inviteVault,
			Target:         args[0],
		})
		if err != nil {
			return finish(s, err)
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Invited " + ui.Highlight.Sprint(result.Target) + " with " +
			ui.Highlight.Sprintf("%d keys", result.Keys) +
			hint("They can run "+ui.Code.Sprint("vaultkey invite accept "+result.InviteID))
		return nil
	},
}

var inviteAcceptCmd = &cobra.Command{
	Use:   "accept [invite-id]",
	Short: "Verify an invite and join the vault",
	Long: `Verifies every key of an invite against the inviter's address key and
joins the vault. Nothing is applied if any key fails verification.

The invite id may be piped on stdin, or given as "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inviteID := ""
		if len(args) == 1 && args[0] != "-" {
			inviteID = args[0]
		} else {
			data, err := utils.ReadStdin()
			if err != nil {
				return err
			}
			inviteID = strings.TrimSpace(string(data))
		}

		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Accepting invite...")
		defer cleanup()

		result, err := workflows.InviteAccept(context.Background(), workflows.InviteAcceptOptions{
			SessionOptions: opts,
			InviteID:       inviteID,
		})
		if err != nil {
			return finish(s, err)
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Joined vault " + ui.Highlight.Sprint(result.Name) + " " +
			ui.Muted.Sprint(result.ShareID) + " at " + ui.RotationLabel(result.Rotation)
		return nil
	},
}
