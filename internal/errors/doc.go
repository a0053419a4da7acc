// Package errors provides typed error values for keysync.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching.
//
// # Error Categories
//
//   - Storage errors: the local store is unusable (ErrStoreUnavailable, ErrTxDone)
//   - Cryptographic errors: key bytes do not decode (ErrInvalidKeyEncoding)
//   - Remote errors: the sync service failed (ErrNetwork, ErrServiceUnavailable)
//   - Configuration errors: bad config or driver names (ErrInvalidConfig)
//   - Command errors: a workflow cannot run as asked (ErrNoRemote, ErrNoAuditLog)
//
// Remote errors are normally recovered inside the sync layer. Storage and
// cryptographic errors are surfaced to the caller.
//
// # Usage
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("opening %s: %w", path, kerrors.ErrStoreUnavailable)
//
// Handle errors in the CLI layer:
//
//	if errors.Is(err, kerrors.ErrInvalidKeyEncoding) {
//	    // Tell the user the store is corrupt
//	}
package errors
