package cmd

import (
	"context"
	"errors"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/ui"

	"github.com/spf13/cobra"
)

// KeyCmd is the top-level key command.
var KeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage this device's private key",
	Long: `Provides commands for the device's key agreement key.

The key is created on first use. When a remote is configured, a device
without a key waits briefly for a key from another device before creating
its own, and duplicate keys collapse to the oldest one.

Examples:
  # Show the public key and fingerprint, creating the key if needed
  keysync key show

  # Derive a shared secret with a peer
  keysync key agree --peer 3b6a27bcceb6a42d62a3a8d02a6f0d73...

  # Delete every key on this device and the account
  keysync key delete --yes`,
	PersistentPreRun: initLogger,
}

func init() {
	addCommonFlags(KeyCmd)

	KeyCmd.AddCommand(keyShowCmd)
	KeyCmd.AddCommand(keyDeleteCmd)
	KeyCmd.AddCommand(keyAgreeCmd)
}

// formatKeyError formats a key workflow error for display to the user.
func formatKeyError(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrInvalidConfig),
		errors.Is(err, kerrors.ErrUnknownDriver),
		errors.Is(err, kerrors.ErrUnsupportedCurve):
		return ui.CrossMark() + " Invalid configuration: " + err.Error() + "\n" +
			ui.HintMark() + " Run " + ui.Code.Sprint("keysync doctor") + " to check your setup"

	case errors.Is(err, kerrors.ErrStoreUnavailable):
		return ui.CrossMark() + " Local key store is unavailable: " + err.Error()

	case errors.Is(err, kerrors.ErrInvalidKeyEncoding):
		return ui.CrossMark() + " Key material is invalid: " + err.Error() + "\n" +
			ui.HintMark() + " If the stored key is corrupt, run " + ui.Code.Sprint("keysync key delete")

	case errors.Is(err, context.Canceled):
		return ui.WarnMark() + " Cancelled"

	default:
		return ui.CrossMark() + " " + err.Error()
	}
}

// isKeyUnexpectedError returns true if the error is unexpected and should cause a non-zero exit.
func isKeyUnexpectedError(err error) bool {
	switch {
	case errors.Is(err, kerrors.ErrInvalidConfig),
		errors.Is(err, kerrors.ErrUnknownDriver),
		errors.Is(err, kerrors.ErrUnsupportedCurve),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}
