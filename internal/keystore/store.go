package keystore

import (
	"context"
	"slices"
	"strings"
	"time"

	logger "github.com/PolarWolf314/keysync/internal/logging"
)

// Record is one persisted private key.
type Record struct {
	ID        string    `json:"id"`
	KeyData   []byte    `json:"key_data"`
	CreatedAt time.Time `json:"created_at"`

	// Seq is the store-local insertion order. It breaks ties between equal
	// CreatedAt values and is never replicated.
	Seq uint64 `json:"-"`
}

// Op is the kind of a journaled change.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change is one committed mutation waiting to be pushed to the remote.
// Delete changes carry only the record ID.
type Change struct {
	Seq    uint64 `json:"seq"`
	Op     Op     `json:"op"`
	Record Record `json:"record"`
}

// Snapshot is the state of a remote zone.
type Snapshot struct {
	Records []Record `json:"records"`
	Deleted []string `json:"deleted"`
}

// MergeResult reports what a Merge changed locally.
type MergeResult struct {
	Added   int
	Removed int
}

// Store is a local record store.
type Store interface {
	// FetchAllSortedByCreation returns every committed record, oldest first.
	FetchAllSortedByCreation(ctx context.Context) ([]Record, error)

	// Begin starts a transaction. Nothing it does is visible until Commit.
	Begin(ctx context.Context) (Tx, error)

	Close() error
}

// Tx is a unit of change against a Store.
type Tx interface {
	// Insert stages a new record with a fresh ID and CreatedAt set to now.
	Insert(ctx context.Context, keyData []byte) (Record, error)

	// Delete stages removal of record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, record Record) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Replica is a Store that exchanges changes with a remote zone.
type Replica interface {
	Store

	// PendingChanges returns journaled changes not yet acknowledged, in order.
	PendingChanges(ctx context.Context) ([]Change, error)

	// Acknowledge drops journaled changes with Seq <= upTo.
	Acknowledge(ctx context.Context, upTo uint64) error

	// Merge applies a remote snapshot without journaling it.
	Merge(ctx context.Context, snap Snapshot) (MergeResult, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
	log logger.Logger
}

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SortByCreation orders records oldest first, breaking ties by Seq.
func SortByCreation(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}

// sortIncoming orders remote records oldest first with ties broken by ID,
// so merged records get the same relative Seq on every device whatever
// order the remote listed them in.
func sortIncoming(records []Record) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func cloneRecord(r Record) Record {
	r.KeyData = append([]byte(nil), r.KeyData...)
	return r
}
