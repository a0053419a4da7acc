package errors

import "errors"

// Storage errors indicate the local key store cannot be used.
var (
	// ErrStoreUnavailable indicates the local store could not be opened, read or written.
	ErrStoreUnavailable = errors.New("local key store unavailable")

	// ErrInvalidRecord indicates a record failed validation at the store boundary.
	ErrInvalidRecord = errors.New("invalid key record")

	// ErrTxDone indicates a transaction was used after commit or rollback.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
)

// Cryptographic errors indicate key material could not be interpreted.
var (
	// ErrInvalidKeyEncoding indicates stored or supplied bytes are not a valid key for the curve.
	ErrInvalidKeyEncoding = errors.New("invalid key encoding")

	// ErrUnsupportedCurve indicates the configured curve is not known.
	ErrUnsupportedCurve = errors.New("unsupported curve")
)

// Remote errors indicate the sync service could not be reached or answered badly.
var (
	// ErrNetwork indicates the remote service could not be reached.
	ErrNetwork = errors.New("network error contacting sync service")

	// ErrServiceUnavailable indicates the remote service answered but cannot serve the request.
	ErrServiceUnavailable = errors.New("sync service unavailable")

	// ErrInvalidAccountStatus indicates an account status string could not be parsed.
	ErrInvalidAccountStatus = errors.New("invalid account status")
)

// Configuration errors indicate the configuration file or flags are unusable.
var (
	// ErrInvalidConfig indicates the configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownDriver indicates a store or remote driver name is not known.
	ErrUnknownDriver = errors.New("unknown driver")
)

// Command errors indicate a workflow cannot run with the given input.
var (
	// ErrNoRemote indicates a command needs a remote but [remote] driver is "none".
	ErrNoRemote = errors.New("no remote configured")

	// ErrNoAuditLog indicates the audit log does not exist yet.
	ErrNoAuditLog = errors.New("no audit log found")

	// ErrInvalidDateFormat indicates a date filter is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format")
)
