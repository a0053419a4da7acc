package cmd

import (
	"github.com/PolarWolf314/keysync/internal/configs"
	logger "github.com/PolarWolf314/keysync/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	verbose    bool
	debug      bool
	configPath string
	Logger     logger.Logger
)

// addCommonFlags registers the flags every command group shares.
func addCommonFlags(group *cobra.Command) {
	group.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	group.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	group.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/keysync/config.toml)")
}

// initLogger builds the package logger from the parsed flags.
func initLogger(cmd *cobra.Command, args []string) {
	Logger = logger.Logger{
		Verbose: verbose,
		Debug:   debug,
	}
	Logger.Debugf("Initializing %s command with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
}

// resolvedConfigPath returns --config or the default location.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return configs.DefaultConfigPath()
}

// loadConfig reads the config named by --config.
func loadConfig() (*configs.Config, error) {
	path := resolvedConfigPath()
	Logger.Debugf("Loading config from %s", path)
	return configs.LoadConfig(path)
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	configPath = ""
	Logger = logger.Logger{}
	resetKeyShowState()
	resetKeyDeleteState()
	resetKeyAgreeState()
	resetAccountStatusState()
	resetAccountSetState()
	resetRelayServeState()
	resetLogCommandState()
	resetDoctorCommandState()
	for _, group := range Groups() {
		resetCobraFlagState(group)
	}
}

// resetCobraFlagState clears Changed on every flag of cmd and its children
// so one test's flags do not leak into the next.
func resetCobraFlagState(cmd *cobra.Command) {
	reset := func(flag *pflag.Flag) {
		flag.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetCobraFlagState(child)
	}
}

// Groups returns every top-level command group.
func Groups() []*cobra.Command {
	return []*cobra.Command{KeyCmd, AccountCmd, RelayCmd, LogCmd, DoctorCmd}
}
