// Package workflows provides high-level orchestration for keysync commands.
//
// Workflows coordinate multiple packages (configs, keystore, cloud,
// keymanager, audit) to implement complete user-facing features. Each
// workflow handles a single command's business logic, independent of CLI
// concerns like flag parsing, spinners, and output formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Loads the configuration
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Opening the configured store and remote (see Open)
//   - Resolving, deleting or using the device key
//   - Recording audit trail entries
//
// # Available Workflows
//
//   - ShowKey: Gets or creates the device key and describes it
//   - DeleteKeys: Deletes every local key record
//   - Agree: Derives a shared secret with a peer public key
//   - AccountStatus: Reports the remote account and local record counts
//   - SetAccountStatus: Provisions an account on the remote backend
//   - Log: Reads and filters the audit log
//   - Doctor: Runs read-only health checks
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching:
//
//	result, err := workflows.ShowKey(ctx, opts)
//	if errors.Is(err, kerrors.ErrInvalidKeyEncoding) {
//	    // Tell the user the stored key is corrupt
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Cancelling it aborts the account status retries and the propagation wait.
package workflows
