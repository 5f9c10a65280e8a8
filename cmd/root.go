package cmd

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	logger "github.com/PolarWolf314/vaultkey/internal/logging"
	"github.com/PolarWolf314/vaultkey/internal/ui"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	RootCmd = &cobra.Command{
		Use:   "vaultkey",
		Short: "vaultkey - end-to-end encrypted vaults shared between addresses",
		Long: `vaultkey keeps items in vaults that are encrypted and signed on your machine.

Every vault has a rotating vault key. Items are encrypted with their own item
key, which is wrapped by the vault key. Members of a vault are invited by
encrypting the vault keys to their address key.

Usage:
  vaultkey <command> [flags]

Run 'vaultkey help <command>' for more details on a specific command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println()
			figure.NewColorFigure("vaultkey", "small", "cyan", true).Print()
			fmt.Println()
			fmt.Printf("%s Run %s to see available commands\n", ui.Info.Sprint("→"), ui.Code.Sprint("vaultkey --help"))
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(keysCmd)
	RootCmd.AddCommand(vaultCmd)
	RootCmd.AddCommand(itemCmd)
	RootCmd.AddCommand(inviteCmd)
	RootCmd.AddCommand(logCmd)
}

// GetRootCmd returns the RootCmd for testing.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	resetInitCommandState()
	resetKeysCommandState()
	resetVaultCommandState()
	resetItemCommandState()
	resetInviteCommandState()
	resetLogCommandState()
	resetCobraFlagState(RootCmd)
}

// resetCobraFlagState clears the Changed bit of every flag so a reused
// command tree does not see flags from an earlier run.
func resetCobraFlagState(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetCobraFlagState(c)
	}
}
