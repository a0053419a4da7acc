// Package logger provides leveled logging for keysync.
//
// The logger supports verbosity levels controlled by command-line flags.
// Output is prefixed with colored level tags from fatih/color.
//
// # Verbosity Levels
//
//   - --verbose: Shows info and warning messages
//   - --debug: Shows all messages including debug details and errors
//
// Without flags, only critical and user-facing warnings are shown.
//
// # Log Methods
//
//	Logger.Infof()          // Shown with --verbose or --debug
//	Logger.Debugf()         // Shown only with --debug
//	Logger.Warnf()          // Shown with --verbose or --debug
//	Logger.WarnfAlways()    // Always shown (critical warnings)
//	Logger.WarnfUser()      // User-facing warnings (not debug info)
//	Logger.Errorf()         // Shown with --debug
//	Logger.ErrorfAndReturn() // Errorf, then returns the formatted error
//
// # Usage
//
// Commands create a logger in their PersistentPreRun and pass it to
// internal packages, which tag it with their component name:
//
//	log := Logger{Verbose: verbose, Debug: debug}.Named("keymanager")
//	log.Infof("Found %d records", count)
package logger
