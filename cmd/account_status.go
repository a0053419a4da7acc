package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/configs"
	"github.com/PolarWolf314/keysync/internal/ui"
	"github.com/PolarWolf314/keysync/internal/workflows"

	"github.com/spf13/cobra"
)

var accountStatusJSON bool

func init() {
	accountStatusCmd.Flags().BoolVar(&accountStatusJSON, "json", false, "output in JSON format")
}

func resetAccountStatusState() {
	accountStatusJSON = false
}

var accountStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the remote account status",
	Long: `Queries the remote account once and reports its status together with the
number of key records in the local store and the changes not yet pushed.

Use --json for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runAccountStatus,
}

func runAccountStatus(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting account status command")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(formatAccountError(err))
		return nil
	}

	spinner, cleanup := startSpinner("Querying account...")
	defer cleanup()

	result, err := workflows.AccountStatus(cmd.Context(), workflows.AccountStatusOptions{
		Config: cfg,
		Logger: Logger,
	})
	if err != nil {
		spinner.FinalMSG = formatAccountError(err)
		if isAccountUnexpectedError(err) {
			return err
		}
		return nil
	}

	if accountStatusJSON {
		spinner.FinalMSG = ""
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"remote":          result.Remote,
			"account":         result.Account,
			"status":          result.Status,
			"local_records":   result.LocalRecords,
			"pending_changes": result.PendingChanges,
		})
	}

	spinner.FinalMSG = formatAccountStatus(result)
	return nil
}

func formatAccountStatus(result *workflows.AccountStatusResult) string {
	var b strings.Builder

	if result.Remote == configs.RemoteNone {
		b.WriteString(ui.InfoMark() + " No remote configured, keys stay on this device\n")
	} else {
		icon := ui.WarnMark()
		if result.Status == cloud.StatusAvailable {
			icon = ui.CheckMark()
		}
		fmt.Fprintf(&b, "%s Account %s is %s\n", icon, ui.Highlight.Sprint(result.Account), result.Status)
	}

	fmt.Fprintf(&b, "\n  %-16s %s\n", "Remote:", result.Remote)
	fmt.Fprintf(&b, "  %-16s %d\n", "Local records:", result.LocalRecords)
	if result.Remote != configs.RemoteNone {
		fmt.Fprintf(&b, "  %-16s %d\n", "Pending changes:", result.PendingChanges)
	}
	if result.LocalRecords > 1 {
		b.WriteString("\n" + ui.HintMark() + " Run " + ui.Code.Sprint("keysync key show") + " to collapse duplicate keys")
	}
	return b.String()
}
