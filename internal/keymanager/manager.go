package keymanager

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/keycodec"
	"github.com/PolarWolf314/keysync/internal/keystore"
	logger "github.com/PolarWolf314/keysync/internal/logging"
)

// RemoteSyncClient is the remote the manager reconciles with.
type RemoteSyncClient interface {
	AccountStatus(ctx context.Context) (cloud.AccountStatus, error)
	AwaitPropagation(ctx context.Context, hasPendingLocalChanges bool) error
}

// publisher is implemented by remotes that can push commits without waiting.
type publisher interface {
	Publish(ctx context.Context) error
}

// Outcome says how Resolve arrived at its key.
type Outcome string

const (
	OutcomeReused       Outcome = "reused"
	OutcomeDeduplicated Outcome = "deduplicated"
	OutcomeSynced       Outcome = "synced"
	OutcomeCreated      Outcome = "created"
)

// Resolution is the result of Resolve.
type Resolution struct {
	Key     *keycodec.PrivateKey
	Record  keystore.Record
	Outcome Outcome

	// Removed counts duplicate records deleted by this call.
	Removed int
}

type Manager struct {
	store  keystore.Store
	remote RemoteSyncClient
	codec  *keycodec.Codec
	retry  cloud.RetryPolicy
	log    logger.Logger
}

type Option func(*Manager)

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithRetryPolicy replaces the account status retry policy. The policy
// logs through the manager's logger.
func WithRetryPolicy(p cloud.RetryPolicy) Option {
	return func(m *Manager) {
		m.retry = p
	}
}

// WithCodec sets the codec used to generate and decode keys.
func WithCodec(c *keycodec.Codec) Option {
	return func(m *Manager) {
		m.codec = c
	}
}

// New returns a manager over store. A nil remote behaves as cloud.Offline.
func New(store keystore.Store, remote RemoteSyncClient, opts ...Option) *Manager {
	if remote == nil {
		remote = cloud.Offline{}
	}
	m := &Manager{
		store:  store,
		remote: remote,
		retry:  cloud.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.codec == nil {
		m.codec, _ = keycodec.New(keycodec.DefaultCurve)
	}
	m.retry.Log = m.log
	return m
}

func (m *Manager) Codec() *keycodec.Codec {
	return m.codec
}

// GetOrCreateKey returns the device's private key.
func (m *Manager) GetOrCreateKey(ctx context.Context) (*keycodec.PrivateKey, error) {
	res, err := m.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return res.Key, nil
}

// Resolve is GetOrCreateKey that also reports the record and how it was found.
func (m *Manager) Resolve(ctx context.Context) (*Resolution, error) {
	records, err := m.store.FetchAllSortedByCreation(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case len(records) > 1:
		return m.deduplicate(ctx, records)
	case len(records) == 1:
		return m.resolution(records[0], OutcomeReused)
	}

	status, waited := m.reconcile(ctx)
	if waited {
		records, err = m.store.FetchAllSortedByCreation(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			m.log.Infof("Found a key from another device after waiting for sync")
			return m.resolution(records[0], OutcomeSynced)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.create(ctx, status)
}

// DeleteAllKeys removes every local key and waits for the remote to catch up.
func (m *Manager) DeleteAllKeys(ctx context.Context) error {
	_, err := m.DeleteAll(ctx)
	return err
}

// DeleteAll is DeleteAllKeys that reports how many records were removed.
func (m *Manager) DeleteAll(ctx context.Context) (int, error) {
	records, err := m.store.FetchAllSortedByCreation(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) > 0 {
		if err := m.deleteRecords(ctx, records); err != nil {
			return 0, err
		}
		m.log.Infof("Deleted %d key record(s)", len(records))
	}

	m.reconcile(ctx)
	if err := ctx.Err(); err != nil {
		return len(records), err
	}
	return len(records), nil
}

// reconcile queries the account and, unless there is none, waits for the
// remote. It returns the status and whether the wait ran. A failed wait is
// logged: the caller proceeds as if nothing arrived.
func (m *Manager) reconcile(ctx context.Context) (cloud.AccountStatus, bool) {
	status, err := m.retry.AccountStatus(ctx, m.remote)
	if err != nil {
		return status, false
	}
	if status == cloud.StatusNoAccount {
		m.log.Debugf("No remote account, skipping sync")
		return status, false
	}
	if status != cloud.StatusAvailable {
		m.log.Debugf("Account status is %s, syncing anyway", status)
	}

	pending, err := m.hasPendingLocalChanges(ctx)
	if err != nil {
		m.log.Warnf("Could not read local outbox: %v", err)
	}
	if err := m.remote.AwaitPropagation(ctx, pending); err != nil {
		m.log.Warnf("Waiting for sync failed: %v", err)
	}
	return status, true
}

func (m *Manager) hasPendingLocalChanges(ctx context.Context) (bool, error) {
	replica, ok := m.store.(keystore.Replica)
	if !ok {
		return false, nil
	}
	changes, err := replica.PendingChanges(ctx)
	if err != nil {
		return false, err
	}
	return len(changes) > 0, nil
}

func (m *Manager) deduplicate(ctx context.Context, records []keystore.Record) (*Resolution, error) {
	// Decode before deleting anything so a bad canonical record is reported
	// with every copy still in place.
	res, err := m.resolution(records[0], OutcomeDeduplicated)
	if err != nil {
		return nil, err
	}
	if err := m.deleteRecords(ctx, records[1:]); err != nil {
		return nil, err
	}
	res.Removed = len(records) - 1
	m.log.Infof("Kept key %s and removed %d duplicate(s)", records[0].ID, res.Removed)
	m.publishIfAccount(ctx)
	return res, nil
}

func (m *Manager) create(ctx context.Context, status cloud.AccountStatus) (*Resolution, error) {
	key, err := m.codec.Generate()
	if err != nil {
		return nil, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := tx.Insert(ctx, m.codec.Encode(key))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	m.log.Infof("Created new %s key %s", m.codec.Curve(), record.ID)
	m.publish(ctx, status)

	return &Resolution{Key: key, Record: record, Outcome: OutcomeCreated}, nil
}

func (m *Manager) deleteRecords(ctx context.Context, records []keystore.Record) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range records {
		if err := tx.Delete(ctx, r); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (m *Manager) resolution(record keystore.Record, outcome Outcome) (*Resolution, error) {
	key, err := m.codec.Decode(record.KeyData)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", record.ID, err)
	}
	return &Resolution{Key: key, Record: record, Outcome: outcome}, nil
}

// publish pushes committed changes if the remote supports it and the
// account exists. Anything not pushed stays in the outbox for the next wait.
func (m *Manager) publish(ctx context.Context, status cloud.AccountStatus) {
	p, ok := m.remote.(publisher)
	if !ok {
		return
	}
	if status == cloud.StatusNoAccount {
		m.log.Debugf("No remote account, keeping changes in the outbox")
		return
	}
	if err := p.Publish(ctx); err != nil {
		m.log.Warnf("Could not publish key changes: %v", err)
	}
}

// publishIfAccount is publish for paths that have not queried the account.
// A single query is made; a failed one leaves the changes in the outbox.
func (m *Manager) publishIfAccount(ctx context.Context) {
	if _, ok := m.remote.(publisher); !ok {
		return
	}
	status, err := m.remote.AccountStatus(ctx)
	if err != nil {
		m.log.Debugf("Account status unavailable, not publishing: %v", err)
		return
	}
	m.publish(ctx, status)
}
