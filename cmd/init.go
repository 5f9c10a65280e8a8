package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/vaultkey/internal/ui"
	"github.com/PolarWolf314/vaultkey/internal/utils"
	"github.com/PolarWolf314/vaultkey/internal/workflows"
)

var initWorkspaceName string

func init() {
	initCmd.Flags().StringVarP(&initWorkspaceName, "name", "n", "", "workspace name (defaults to the directory name)")
}

func resetInitCommandState() {
	initWorkspaceName = ""
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a vaultkey workspace in the current directory",
	Long: `Creates a .vaultkey directory holding the workspace config, the vault
records and the audit log. If you already have an address key it is
published to the workspace so others can invite you.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting init command")
		s, cleanup := startSpinner("Initializing workspace...")
		defer cleanup()

		result, err := workflows.Init(context.Background(), workflows.InitOptions{WorkspaceName: initWorkspaceName})
		if err != nil {
			return finish(s, err)
		}

		msg := ui.Success.Sprint("✓") + " Initialized workspace " + ui.Highlight.Sprint(result.WorkspaceName) +
			" in " + ui.Path.Sprint(result.WorkspacePath)
		msg += "\n" + ui.Info.Sprint("→") + " Created:" + utils.FormatPaths(relativePaths(result.WorkspacePath, result.CreatedPaths))
		if result.AddressPublished {
			msg += "\n" + ui.Info.Sprint("→") + " Published your address key"
		} else {
			msg += "\n" + ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("vaultkey keys generate") + " to create your address key"
		}
		s.FinalMSG = msg
		Logger.Debugf("Workspace %s has uuid %s", result.WorkspaceName, result.WorkspaceUUID)
		return nil
	},
}

// relativePaths shows paths relative to base where possible.
func relativePaths(base string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(base, p); err == nil {
			p = rel
		}
		out = append(out, p)
	}
	return out
}
