package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/PolarWolf314/keysync/internal/configs"
	"github.com/PolarWolf314/keysync/internal/ui"
	"github.com/PolarWolf314/keysync/internal/workflows"

	"github.com/spf13/cobra"
)

var deleteForce bool

func init() {
	keyDeleteCmd.Flags().BoolVarP(&deleteForce, "yes", "y", false, "skip confirmation prompt")
}

func resetKeyDeleteState() {
	deleteForce = false
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every private key on this device",
	Long: `Deletes every key record in the local store.

When a remote is configured the deletions are pushed to the account, so
other devices drop the key on their next sync and it cannot come back. The
next 'keysync key show' on any device creates a fresh key.

Use --yes to skip the confirmation prompt.`,
	Args: cobra.NoArgs,
	RunE: runKeyDelete,
}

func runKeyDelete(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting key delete command")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(formatKeyError(err))
		return nil
	}

	if !deleteForce {
		fmt.Println("This will permanently delete this device's private key.")
		if cfg.Remote.Driver != configs.RemoteNone {
			fmt.Println("The deletion syncs to " + ui.Highlight.Sprint(cfg.Account()) + " and every device on it.")
		}
		fmt.Println()
		if !confirmDelete() {
			fmt.Println("Aborted.")
			return nil
		}
	}

	spinner, cleanup := startSpinner("Deleting keys...")
	defer cleanup()

	result, err := workflows.DeleteKeys(cmd.Context(), workflows.DeleteKeysOptions{
		Config: cfg,
		Logger: Logger,
	})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		if isKeyUnexpectedError(err) {
			return err
		}
		return nil
	}

	if result.Removed == 0 {
		spinner.FinalMSG = ui.InfoMark() + " No keys to delete"
		return nil
	}
	spinner.FinalMSG = ui.CheckMark() + fmt.Sprintf(" Deleted %d key record(s)", result.Removed)
	return nil
}

// confirmDelete prompts the user to confirm the deletion.
func confirmDelete() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Do you want to continue? [y/N]: ")
	response, err := reader.ReadString('\n')
	if err != nil {
		Logger.Errorf("Failed to read response: %v", err)
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
