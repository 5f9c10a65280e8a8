package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/vaultkey/internal/audit"
	"github.com/PolarWolf314/vaultkey/internal/ui"
	"github.com/PolarWolf314/vaultkey/internal/workflows"
)

var (
	logLimit     int
	logReverse   bool
	logUser      string
	logOperation string
	logVault     string
	logSince     string
	logUntil     string
	logJSON      bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	logCmd.Flags().StringVar(&logUser, "user", "", "filter by user email")
	logCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation (comma-separated)")
	logCmd.Flags().StringVar(&logVault, "vault", "", "filter by share id")
	logCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logUser = ""
	logOperation = ""
	logVault = ""
	logSince = ""
	logUntil = ""
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long: `Displays the audit log of the workspace.

Examples:
  vaultkey log -n 10                          # Last 10 entries
  vaultkey log --operation security_event     # Verification failures
  vaultkey log --since 2026-01-01 --json      # JSON output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting log command")
		s, cleanup := startSpinner("Loading audit log...")
		defer cleanup()

		result, err := workflows.Log(context.Background(), workflows.LogOptions{
			Limit:      logLimit,
			Reverse:    logReverse,
			User:       logUser,
			Operations: logOperation,
			Vault:      logVault,
			Since:      logSince,
			Until:      logUntil,
		})
		if err != nil {
			return finish(s, err)
		}
		Logger.Debugf("Showing %d of %d entries", len(result.Entries), result.Total)

		switch {
		case len(result.Entries) == 0 && result.Total == 0:
			s.FinalMSG = ui.Info.Sprint("→") + " No audit log entries found"
		case len(result.Entries) == 0:
			s.FinalMSG = ui.Info.Sprint("→") + " No audit log entries match the filters"
		case logJSON:
			data, err := json.MarshalIndent(result.Entries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal entries to JSON: %w", err)
			}
			s.FinalMSG = string(data)
		default:
			s.FinalMSG = formatEntries(result.Entries)
		}
		return nil
	},
}

func formatEntries(entries []audit.Entry) string {
	out := ""
	for _, e := range entries {
		op := e.Operation
		if op == audit.OpSecurityEvent {
			op = ui.Security.Sprint(op)
		}
		out += fmt.Sprintf("%-19s  %-25s  %-14s  %-36s  %s\n",
			workflows.FormatDateTime(e.Timestamp), e.User, op, e.ShareID, workflows.FormatDetails(e))
	}
	return out
}
