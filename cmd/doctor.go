package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PolarWolf314/keysync/internal/ui"
	"github.com/PolarWolf314/keysync/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	doctorJSONOutput bool
	// doctorExitFunc is the function called to exit with a specific code.
	// Can be overridden for testing.
	doctorExitFunc = os.Exit
)

func init() {
	addCommonFlags(DoctorCmd)
	DoctorCmd.Flags().BoolVar(&doctorJSONOutput, "json", false, "output in JSON format")
}

func resetDoctorCommandState() {
	doctorJSONOutput = false
	doctorExitFunc = os.Exit
}

// SetDoctorExitFunc sets the exit function for testing purposes.
func SetDoctorExitFunc(f func(int)) {
	doctorExitFunc = f
}

// DoctorCmd is the top-level doctor command.
var DoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the keysync setup",
	Long: `Runs read-only health checks and reports issues.

The doctor command checks:
  - Config file validity and key curve
  - Local store reachability and record count
  - Whether the stored key decodes
  - Store file and audit log permissions
  - Remote reachability and account status

Exit codes:
  0 - All checks passed
  1 - Warnings found (non-critical issues)
  2 - Errors found (critical issues)

Use --json for machine-readable output.`,
	Args:             cobra.NoArgs,
	PersistentPreRun: initLogger,
	RunE:             runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting doctor command")

	spinner, cleanup := startSpinner("Running health checks...")

	result, err := workflows.Doctor(cmd.Context(), workflows.DoctorOptions{
		ConfigPath: resolvedConfigPath(),
		Logger:     Logger,
	})
	if err != nil {
		spinner.FinalMSG = ui.CrossMark() + " Failed to run health checks: " + err.Error()
		cleanup()
		return err
	}

	for _, check := range result.Checks {
		Logger.Debugf("Check %s: status=%s, message=%s", check.Name, check.Status.String(), check.Message)
	}

	if doctorJSONOutput {
		spinner.FinalMSG = ""
		cleanup()
		if err := outputDoctorJSON(result); err != nil {
			return err
		}
	} else {
		spinner.FinalMSG = ""
		cleanup()
		printDoctorResults(result)
		switch {
		case result.Summary.Errors > 0:
			fmt.Println(ui.CrossMark() + " Health checks completed with errors")
		case result.Summary.Warnings > 0:
			fmt.Println(ui.WarnMark() + " Health checks completed with warnings")
		default:
			fmt.Println(ui.CheckMark() + " Health checks completed")
		}
	}

	// Set exit code based on results.
	if result.Summary.Errors > 0 {
		doctorExitFunc(2)
	} else if result.Summary.Warnings > 0 {
		doctorExitFunc(1)
	}
	return nil
}

// outputDoctorJSON outputs the result as JSON.
func outputDoctorJSON(result *workflows.DoctorResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// printDoctorResults prints the doctor results in a human-readable format.
func printDoctorResults(result *workflows.DoctorResult) {
	for _, check := range result.Checks {
		var statusIcon string
		switch check.Status {
		case workflows.CheckPass:
			statusIcon = ui.CheckMark()
		case workflows.CheckWarning:
			statusIcon = ui.WarnMark()
		case workflows.CheckError:
			statusIcon = ui.CrossMark()
		}
		fmt.Printf("%s %-24s %s\n", statusIcon, check.Name, check.Message)
	}

	fmt.Println()
	fmt.Printf("Summary: %d passed", result.Summary.Passed)
	if result.Summary.Warnings > 0 {
		fmt.Printf(", %s", ui.Warning.Sprint(fmt.Sprintf("%d warning(s)", result.Summary.Warnings)))
	}
	if result.Summary.Errors > 0 {
		fmt.Printf(", %s", ui.Error.Sprint(fmt.Sprintf("%d error(s)", result.Summary.Errors)))
	}
	fmt.Println()

	if len(result.Suggestions) > 0 {
		fmt.Println()
		fmt.Println("Suggestions:")
		for _, suggestion := range result.Suggestions {
			fmt.Printf("  %s %s\n", ui.HintMark(), suggestion)
		}
	}
	fmt.Println()
}
