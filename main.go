package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PolarWolf314/keysync/cmd"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keysync",
	Short: "keysync - per-device key agreement keys that sync across your devices.",
	Long: `keysync keeps one key agreement key per account, shared by every device
signed in to that account.

A device that has no key waits briefly for one to arrive from another
device before creating its own. When two devices race, the oldest key wins
and the others are deleted everywhere.

Usage:
  keysync <command> [flags]

Available Commands:
  key        Show, delete or use this device's key
  account    Inspect and provision the sync account
  relay      Run an HTTP sync relay
  log        View the audit log
  doctor     Run health checks

Run 'keysync help <command>' for more details on a specific command.
`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println()
		figure.NewColorFigure("keysync", "small", "green", true).Print()
		fmt.Println()
		fmt.Println("Run 'keysync --help' to see available commands.")
	},
}

func init() {
	for _, group := range cmd.Groups() {
		rootCmd.AddCommand(group)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
