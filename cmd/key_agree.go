package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PolarWolf314/keysync/internal/ui"
	"github.com/PolarWolf314/keysync/internal/utils"
	"github.com/PolarWolf314/keysync/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	agreePeer string
	agreeJSON bool
)

func init() {
	keyAgreeCmd.Flags().StringVar(&agreePeer, "peer", "", "peer public key in hex, or - to read it from stdin")
	keyAgreeCmd.Flags().BoolVar(&agreeJSON, "json", false, "output in JSON format")
}

func resetKeyAgreeState() {
	agreePeer = ""
	agreeJSON = false
}

var keyAgreeCmd = &cobra.Command{
	Use:   "agree",
	Short: "Derive a shared secret with a peer's public key",
	Long: `Performs key agreement between this device's private key and a peer's
public key and prints the shared secret in hex.

The peer key must be on the configured curve. Spaces and colons in the hex
are ignored. Pass --peer - or pipe the key on stdin to avoid putting it in
your shell history.`,
	Args: cobra.NoArgs,
	RunE: runKeyAgree,
}

func runKeyAgree(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting key agree command")

	peer := agreePeer
	if peer == "" || peer == "-" {
		if peer == "" && utils.IsTerminal() {
			fmt.Println(ui.CrossMark() + " No peer public key given")
			fmt.Println(ui.HintMark() + " Pass " + ui.Flag.Sprint("--peer <hex>") + " or pipe the key on stdin")
			return nil
		}
		data, err := utils.ReadStdin()
		if err != nil {
			return Logger.ErrorfAndReturn("failed to read peer key from stdin: %v", err)
		}
		peer = data
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(formatKeyError(err))
		return nil
	}

	spinner, cleanup := startSpinner("Deriving shared secret...")
	defer cleanup()

	result, err := workflows.Agree(cmd.Context(), workflows.AgreeOptions{
		Config:        cfg,
		Logger:        Logger,
		PeerPublicKey: peer,
	})
	if err != nil {
		spinner.FinalMSG = formatKeyError(err)
		if isKeyUnexpectedError(err) {
			return err
		}
		return nil
	}

	if agreeJSON {
		spinner.FinalMSG = ""
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]string{
			"curve":            string(result.Curve),
			"record_id":        result.RecordID,
			"peer_fingerprint": result.PeerFingerprint,
			"shared_secret":    utils.GroupHex(result.SharedSecret, 0),
		})
	}

	spinner.FinalMSG = ui.CheckMark() + " Derived shared secret with peer " + result.PeerFingerprint + "\n\n" +
		"  " + ui.Secret.Sprint(utils.GroupHex(result.SharedSecret, 0))
	return nil
}
