package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PolarWolf314/keysync/internal/keymanager"
	"github.com/PolarWolf314/keysync/internal/ui"
	"github.com/PolarWolf314/keysync/internal/utils"
	"github.com/PolarWolf314/keysync/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	showReveal bool
	showJSON   bool
)

func init() {
	keyShowCmd.Flags().BoolVar(&showReveal, "reveal", false, "also print the private key")
	keyShowCmd.Flags().BoolVar(&showJSON, "json", false, "output in JSON format")
}

func resetKeyShowState() {
	showReveal = false
	showJSON = false
}

type keyShowJSON struct {
	Curve       string `json:"curve"`
	RecordID    string `json:"record_id"`
	CreatedAt   string `json:"created_at"`
	Outcome     string `json:"outcome"`
	Removed     int    `json:"removed,omitempty"`
	Account     string `json:"account,omitempty"`
	PublicKey   string `json:"public_key"`
	Fingerprint string `json:"fingerprint"`
	PrivateKey  string `json:"private_key,omitempty"`
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show this device's public key, creating the key if needed",
	Long: `Resolves the device key and prints its curve, record id, public key and
fingerprint.

If the store holds several keys, the oldest is kept and the rest are
deleted. If it holds none and a remote account exists, keys from other
devices are given a short grace period to arrive before a new one is made.

Use --reveal to print the private key as well. Use --json for
machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runKeyShow,
}

func runKeyShow(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting key show command")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(formatKeyError(err))
		return nil
	}

	spinner, cleanup := startSpinner("Resolving device key...")
	defer cleanup()

	result, err := workflows.ShowKey(cmd.Context(), workflows.ShowKeyOptions{
		Config: cfg,
		Logger: Logger,
		Reveal: showReveal,
	})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		if isKeyUnexpectedError(err) {
			return err
		}
		return nil
	}

	Logger.Debugf("Resolved record %s with outcome %s", result.RecordID, result.Outcome)

	if showJSON {
		spinner.FinalMSG = ""
		return outputKeyShowJSON(result)
	}

	spinner.FinalMSG = formatKeyShow(result)
	return nil
}

func outputKeyShowJSON(result *workflows.ShowKeyResult) error {
	out := keyShowJSON{
		Curve:       string(result.Curve),
		RecordID:    result.RecordID,
		CreatedAt:   result.CreatedAt.UTC().Format(time.RFC3339),
		Outcome:     string(result.Outcome),
		Removed:     result.Removed,
		Account:     result.Account,
		PublicKey:   utils.GroupHex(result.PublicKey, 0),
		Fingerprint: result.Fingerprint,
	}
	if result.PrivateKey != nil {
		out.PrivateKey = utils.GroupHex(result.PrivateKey, 0)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func formatKeyShow(result *workflows.ShowKeyResult) string {
	var b strings.Builder

	switch result.Outcome {
	case keymanager.OutcomeCreated:
		b.WriteString(ui.CheckMark() + " Created a new " + string(result.Curve) + " key\n")
	case keymanager.OutcomeSynced:
		b.WriteString(ui.CheckMark() + " Adopted the key synced from another device\n")
	case keymanager.OutcomeDeduplicated:
		b.WriteString(ui.CheckMark() + fmt.Sprintf(" Kept the oldest key and removed %d duplicate(s)\n", result.Removed))
	default:
		b.WriteString(ui.CheckMark() + " Using existing key\n")
	}

	fmt.Fprintf(&b, "\n  %-12s %s\n", "Curve:", result.Curve)
	fmt.Fprintf(&b, "  %-12s %s %s\n", "Record:", result.RecordID, ui.Muted.Sprint(result.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	if result.Account != "" {
		fmt.Fprintf(&b, "  %-12s %s\n", "Account:", ui.Highlight.Sprint(result.Account))
	}
	fmt.Fprintf(&b, "  %-12s %s\n", "Fingerprint:", result.Fingerprint)
	fmt.Fprintf(&b, "  %-12s %s\n", "Public key:", ui.KeyMaterial.Sprint(utils.GroupHex(result.PublicKey, 0)))

	if result.PrivateKey != nil {
		fmt.Fprintf(&b, "  %-12s %s\n", "Private key:", ui.Secret.Sprint(utils.GroupHex(result.PrivateKey, 0)))
		b.WriteString("\n" + ui.WarnMark() + " Anyone with the private key can derive your shared secrets")
	}

	return b.String()
}
