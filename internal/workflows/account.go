package workflows

import (
	"context"

	"github.com/PolarWolf314/keysync/internal/audit"
	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/configs"
	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/keystore"
	logger "github.com/PolarWolf314/keysync/internal/logging"
)

// AccountStatusOptions configures the account status workflow.
type AccountStatusOptions struct {
	Config  *configs.Config
	Logger  logger.Logger
	Session *Session
}

// AccountStatusResult describes the remote account and the local store.
type AccountStatusResult struct {
	Remote  string
	Account string
	Status  cloud.AccountStatus

	// LocalRecords is the number of key records in the local store.
	LocalRecords int

	// PendingChanges is the number of local commits not yet pushed.
	PendingChanges int
}

// AccountStatus queries the remote account once and counts local records.
// Without a remote the status is StatusNoAccount.
func AccountStatus(ctx context.Context, opts AccountStatusOptions) (*AccountStatusResult, error) {
	session, release, err := sessionFor(ctx, opts.Session, opts.Config, opts.Logger)
	if err != nil {
		return nil, err
	}
	defer release()

	records, err := session.Store.FetchAllSortedByCreation(ctx)
	if err != nil {
		return nil, err
	}

	result := &AccountStatusResult{
		Remote:       session.Config.Remote.Driver,
		Account:      session.Account(),
		Status:       cloud.StatusNoAccount,
		LocalRecords: len(records),
	}

	if replica, ok := session.Store.(keystore.Replica); ok {
		pending, err := replica.PendingChanges(ctx)
		if err != nil {
			return nil, err
		}
		result.PendingChanges = len(pending)
	}

	if session.Client != nil {
		status, err := session.Client.AccountStatus(ctx)
		if err != nil {
			return nil, err
		}
		result.Status = status
	}

	return result, nil
}

// SetAccountStatusOptions configures the set account status workflow.
type SetAccountStatusOptions struct {
	Config *configs.Config
	Logger logger.Logger

	// Backend replaces the backend built from [remote].
	Backend cloud.Backend

	// Account defaults to the configured account.
	Account string

	// Status is parsed with cloud.ParseAccountStatus.
	Status string
}

// SetAccountStatusResult reports the status written.
type SetAccountStatusResult struct {
	Account string
	Status  cloud.AccountStatus
}

// SetAccountStatus provisions or changes an account on the remote backend.
//
// Returns ErrInvalidAccountStatus if the status name is not known.
// Returns ErrNoRemote if no remote is configured.
func SetAccountStatus(ctx context.Context, opts SetAccountStatusOptions) (*SetAccountStatusResult, error) {
	status, err := cloud.ParseAccountStatus(opts.Status)
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = configs.DefaultConfig()
	}

	backend := opts.Backend
	if backend == nil {
		backend, err = OpenBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if backend == nil {
			return nil, kerrors.ErrNoRemote
		}
		defer backend.Close()
	}

	account := opts.Account
	if account == "" {
		account = cfg.Account()
	}

	if err := backend.SetAccountStatus(ctx, account, status); err != nil {
		return nil, err
	}
	opts.Logger.Infof("Set account %s to %s", account, status)

	entry := audit.LogWithUser("account-set")
	entry.Account = account
	entry.Status = status.String()
	audit.Log(entry)

	return &SetAccountStatusResult{Account: account, Status: status}, nil
}
