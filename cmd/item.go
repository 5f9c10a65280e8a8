package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/vaultkey/internal/codec"
	"github.com/PolarWolf314/vaultkey/internal/ui"
	"github.com/PolarWolf314/vaultkey/internal/workflows"
)

var (
	itemVault    string
	itemNote     string
	itemUsername string
	itemPassword string
	itemURLs     []string
	itemTOTP     string
	itemName     string
	itemReveal   bool
)

func init() {
	for _, c := range []*cobra.Command{itemCreateCmd, itemUpdateCmd, itemOpenCmd} {
		c.Flags().StringVar(&itemVault, "vault", "", "vault name or share id")
		_ = c.MarkFlagRequired("vault")
	}
	for _, c := range []*cobra.Command{itemCreateCmd, itemUpdateCmd} {
		c.Flags().StringVar(&itemNote, "note", "", "note text")
		c.Flags().StringVar(&itemUsername, "username", "", "login username")
		c.Flags().StringVar(&itemPassword, "password", "", "login password")
		c.Flags().StringSliceVar(&itemURLs, "url", nil, "login URL (repeatable)")
		c.Flags().StringVar(&itemTOTP, "totp", "", "TOTP URI")
	}
	itemUpdateCmd.Flags().StringVar(&itemName, "name", "", "new item name")
	itemOpenCmd.Flags().BoolVar(&itemReveal, "reveal", false, "show the password instead of masking it")

	itemCmd.AddCommand(itemCreateCmd)
	itemCmd.AddCommand(itemUpdateCmd)
	itemCmd.AddCommand(itemOpenCmd)
}

func resetItemCommandState() {
	itemVault = ""
	itemNote = ""
	itemUsername = ""
	itemPassword = ""
	itemURLs = nil
	itemTOTP = ""
	itemName = ""
	itemReveal = false
}

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Create, update and open items",
}

var itemCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an item in a vault",
	Long: `Creates a note, or a login when any login field is given.

Examples:
  vaultkey item create Bills --vault Finance --note "due on the 1st"
  vaultkey item create Bank --vault Finance --username alice --password hunter2 --url https://bank.example`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Creating item...")
		defer cleanup()

		result, err := workflows.ItemCreate(context.Background(), workflows.ItemCreateOptions{
			SessionOptions: opts,
			Vault:          itemVault,
			ItemFields: workflows.ItemFields{
				Name:     args[0],
				Note:     itemNote,
				Username: itemUsername,
				Password: itemPassword,
				URLs:     itemURLs,
				TOTPURI:  itemTOTP,
			},
		})
		if err != nil {
			return finish(s, err)
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Created item " + ui.Highlight.Sprint(args[0]) + " " + ui.Muted.Sprint(result.ItemID)
		return nil
	},
}

// changedString returns a pointer to value when the flag was given.
func changedString(cmd *cobra.Command, flag string, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

var itemUpdateCmd = &cobra.Command{
	Use:   "update <item-id>",
	Short: "Change fields of an item",
	Long: `Applies the given fields to the latest revision of an item. If another
member writes the item at the same time, the change is reapplied to their
revision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		changes := workflows.ItemChanges{
			Name:     changedString(cmd, "name", itemName),
			Note:     changedString(cmd, "note", itemNote),
			Username: changedString(cmd, "username", itemUsername),
			Password: changedString(cmd, "password", itemPassword),
			TOTPURI:  changedString(cmd, "totp", itemTOTP),
		}
		if cmd.Flags().Changed("url") {
			changes.URLs = append([]string{}, itemURLs...)
		}

		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Updating item...")
		defer cleanup()

		result, err := workflows.ItemUpdate(context.Background(), workflows.ItemUpdateOptions{
			SessionOptions: opts,
			ItemChanges:    changes,
			Vault:          itemVault,
			ItemID:         args[0],
		})
		if err != nil {
			return finish(s, err)
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Updated " + ui.Highlight.Sprint(result.Contents.Metadata.Name) +
			fmt.Sprintf(" to revision %d", result.Revision)
		return nil
	},
}

var itemOpenCmd = &cobra.Command{
	Use:   "open <item-id>",
	Short: "Decrypt and show an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := sessionOptions()
		if err != nil {
			return err
		}
		s, cleanup := startSpinner("Opening item...")
		defer cleanup()

		result, err := workflows.ItemOpen(context.Background(), workflows.ItemOpenOptions{
			SessionOptions: opts,
			Vault:          itemVault,
			ItemID:         args[0],
		})
		if err != nil {
			return finish(s, err)
		}
		s.FinalMSG = formatItem(result, itemReveal)
		return nil
	},
}

func formatItem(it *workflows.ItemResult, reveal bool) string {
	var b strings.Builder
	c := it.Contents
	fmt.Fprintf(&b, "%s %s\n", ui.Highlight.Sprint(c.Metadata.Name), ui.Muted.Sprintf("revision %d, signed by %s", it.Revision, it.Signer))
	if login, ok := c.Content.(codec.Login); ok {
		password := ui.Mask(login.Password)
		if reveal {
			password = login.Password
		}
		fmt.Fprintf(&b, "  username  %s\n", login.Username)
		fmt.Fprintf(&b, "  password  %s\n", password)
		for _, u := range login.URLs {
			fmt.Fprintf(&b, "  url       %s\n", u)
		}
		if login.TOTPURI != "" {
			fmt.Fprintf(&b, "  totp      %s\n", ui.Mask(login.TOTPURI))
		}
	}
	if c.Metadata.Note != "" {
		fmt.Fprintf(&b, "  note      %s\n", c.Metadata.Note)
	}
	for _, f := range c.ExtraFields {
		value := f.Value
		if f.Hidden && !reveal {
			value = ui.Mask(value)
		}
		fmt.Fprintf(&b, "  %-9s %s\n", f.Name, value)
	}
	return b.String()
}
