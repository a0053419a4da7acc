package cmd

import (
	"context"
	"errors"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/ui"

	"github.com/spf13/cobra"
)

// AccountCmd is the top-level account command.
var AccountCmd = &cobra.Command{
	Use:   "account",
	Short: "Inspect and provision the remote sync account",
	Long: `Provides commands for the remote account keys sync through.

The account defaults to your username and can be set with [remote] account
in the config file.

Examples:
  # Show the account status and local record counts
  keysync account status

  # Provision the account on the configured backend
  keysync account set available`,
	PersistentPreRun: initLogger,
}

func init() {
	addCommonFlags(AccountCmd)

	AccountCmd.AddCommand(accountStatusCmd)
	AccountCmd.AddCommand(accountSetCmd)
}

// formatAccountError formats an account workflow error for display to the user.
func formatAccountError(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrNoRemote):
		return ui.CrossMark() + " No remote is configured\n" +
			ui.HintMark() + " Set " + ui.Code.Sprint("[remote] driver") + " to redis or http in " + ui.Path.Sprint(resolvedConfigPath())

	case errors.Is(err, kerrors.ErrInvalidAccountStatus):
		return ui.CrossMark() + " " + err.Error() + "\n" +
			ui.HintMark() + " Use one of available, no_account, restricted, unknown"

	case errors.Is(err, kerrors.ErrNetwork), errors.Is(err, kerrors.ErrServiceUnavailable):
		return ui.CrossMark() + " Could not reach the sync service: " + err.Error()

	default:
		return formatKeyError(err)
	}
}

// isAccountUnexpectedError returns true if the error is unexpected and should cause a non-zero exit.
func isAccountUnexpectedError(err error) bool {
	switch {
	case errors.Is(err, kerrors.ErrNoRemote),
		errors.Is(err, kerrors.ErrInvalidAccountStatus),
		errors.Is(err, context.Canceled):
		return false
	default:
		return isKeyUnexpectedError(err)
	}
}
