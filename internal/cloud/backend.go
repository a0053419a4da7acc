package cloud

import (
	"context"

	"github.com/PolarWolf314/keysync/internal/keystore"
)

// Backend is a remote service holding one zone of records per account.
type Backend interface {
	// AccountStatus reports the state of account. Unknown accounts are
	// StatusNoAccount.
	AccountStatus(ctx context.Context, account string) (AccountStatus, error)

	// SetAccountStatus provisions or changes an account.
	SetAccountStatus(ctx context.Context, account string, status AccountStatus) error

	// Push applies local changes to the account's zone. A put never
	// overrides a tombstone.
	Push(ctx context.Context, account string, changes []keystore.Change) error

	// Pull returns the account's zone.
	Pull(ctx context.Context, account string) (keystore.Snapshot, error)

	Close() error
}

// StatusDocument is the wire form of an account status.
type StatusDocument struct {
	Status AccountStatus `json:"status"`
}

// ChangeSet is the wire form of a push.
type ChangeSet struct {
	Changes []keystore.Change `json:"changes"`
}
