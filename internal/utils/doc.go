// Package utils provides shared helpers for keysync.
//
// # System Utilities
//
// Functions for interacting with the operating system:
//   - GetUsername: returns the current system username
//   - GetHostname: returns the system hostname
//   - DeviceName: a sanitized hostname used to tag audit entries
//
// # String Utilities
//
//   - GroupHex: hex encodes bytes in fixed-size groups for display
//   - ParseHex: parses hex typed by a user, ignoring separators
//
// # I/O Utilities
//
//   - ReadStdin: reads piped data from standard input
//
// # Terminal Utilities
//
//   - IsTerminal / IsStdoutTerminal: decide whether to animate output
package utils
