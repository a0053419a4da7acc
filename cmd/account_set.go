package cmd

import (
	"fmt"

	"github.com/PolarWolf314/keysync/internal/ui"
	"github.com/PolarWolf314/keysync/internal/workflows"

	"github.com/spf13/cobra"
)

var setAccountName string

func init() {
	accountSetCmd.Flags().StringVar(&setAccountName, "account", "", "account to change (default from config)")
}

func resetAccountSetState() {
	setAccountName = ""
}

var accountSetCmd = &cobra.Command{
	Use:   "set <status>",
	Short: "Provision or change the account on the remote backend",
	Long: `Writes an account status to the configured backend.

Devices only wait for keys from each other when the account exists. Status
is one of available, no_account, restricted or unknown.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"available", "no_account", "restricted", "unknown"},
	RunE:      runAccountSet,
}

func runAccountSet(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting account set command")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(formatAccountError(err))
		return nil
	}

	spinner, cleanup := startSpinner("Updating account...")
	defer cleanup()

	result, err := workflows.SetAccountStatus(cmd.Context(), workflows.SetAccountStatusOptions{
		Config:  cfg,
		Logger:  Logger,
		Account: setAccountName,
		Status:  args[0],
	})
	if err != nil {
		spinner.FinalMSG = formatAccountError(err)
		if isAccountUnexpectedError(err) {
			return err
		}
		return nil
	}

	spinner.FinalMSG = ui.CheckMark() + " Account " + ui.Highlight.Sprint(result.Account) + " is now " + result.Status.String()
	return nil
}
