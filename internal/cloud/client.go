package cloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/keystore"
	logger "github.com/PolarWolf314/keysync/internal/logging"
)

const (
	DefaultGracePeriod  = 3 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// Client replicates a local replica to and from one account's zone.
type Client struct {
	backend Backend
	replica keystore.Replica
	account string
	grace   time.Duration
	poll    time.Duration
	log     logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGracePeriod bounds how long AwaitPropagation waits.
func WithGracePeriod(d time.Duration) ClientOption {
	return func(c *Client) {
		c.grace = d
	}
}

// WithPollInterval sets how often AwaitPropagation pulls during the wait.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.poll = d
	}
}

func WithLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(backend Backend, replica keystore.Replica, account string, opts ...ClientOption) *Client {
	c := &Client{
		backend: backend,
		replica: replica,
		account: account,
		grace:   DefaultGracePeriod,
		poll:    DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.poll <= 0 {
		c.poll = DefaultPollInterval
	}
	return c
}

// Account returns the account this client syncs.
func (c *Client) Account() string {
	return c.account
}

func (c *Client) AccountStatus(ctx context.Context) (AccountStatus, error) {
	return c.backend.AccountStatus(ctx, c.account)
}

// Publish pushes the replica's outbox and acknowledges what was accepted.
func (c *Client) Publish(ctx context.Context) error {
	changes, err := c.replica.PendingChanges(ctx)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	if err := c.backend.Push(ctx, c.account, changes); err != nil {
		return err
	}
	c.log.Debugf("Pushed %d change(s) for account %s", len(changes), c.account)
	return c.replica.Acknowledge(ctx, changes[len(changes)-1].Seq)
}

// Pull merges the remote zone into the replica.
func (c *Client) Pull(ctx context.Context) (keystore.MergeResult, error) {
	snap, err := c.backend.Pull(ctx, c.account)
	if err != nil {
		return keystore.MergeResult{}, err
	}
	res, err := c.replica.Merge(ctx, snap)
	if err != nil {
		return res, fmt.Errorf("merging remote snapshot: %w", err)
	}
	if res.Added > 0 || res.Removed > 0 {
		c.log.Debugf("Merged remote zone: %d added, %d removed", res.Added, res.Removed)
	}
	return res, nil
}

// Mirror brings the replica up to date with the remote zone: the outbox is
// pushed, then the zone is pulled once so remote inserts and tombstones
// reach a replica that already holds records. Nothing is sent when the
// account does not exist. Remote failures are logged and swallowed. Local
// failures and context cancellation are returned.
func (c *Client) Mirror(ctx context.Context) (keystore.MergeResult, error) {
	status, err := c.AccountStatus(ctx)
	if err != nil {
		if fatal := c.localFailure(ctx, err); fatal != nil {
			return keystore.MergeResult{}, fatal
		}
		c.log.Warnf("Account status query failed, not syncing: %v", err)
		return keystore.MergeResult{}, nil
	}
	if status == StatusNoAccount {
		c.log.Debugf("No remote account %s, not syncing", c.account)
		return keystore.MergeResult{}, nil
	}

	if err := c.Publish(ctx); err != nil {
		if fatal := c.localFailure(ctx, err); fatal != nil {
			return keystore.MergeResult{}, fatal
		}
		c.log.Warnf("Could not push local changes: %v", err)
	}

	res, err := c.Pull(ctx)
	if err != nil {
		if fatal := c.localFailure(ctx, err); fatal != nil {
			return res, fatal
		}
		c.log.Warnf("Could not pull remote changes: %v", err)
		return keystore.MergeResult{}, nil
	}
	return res, nil
}

// AwaitPropagation pushes pending changes if asked to, then pulls the remote
// zone until the grace period elapses or a pull brings in new records.
// Remote failures are logged and swallowed. Local failures and context
// cancellation are returned.
func (c *Client) AwaitPropagation(ctx context.Context, hasPendingLocalChanges bool) error {
	deadline := time.Now().Add(c.grace)

	if hasPendingLocalChanges {
		if err := c.Publish(ctx); err != nil {
			if fatal := c.localFailure(ctx, err); fatal != nil {
				return fatal
			}
			c.log.Warnf("Could not push local changes: %v", err)
		}
	}

	done, err := c.pullOnce(ctx)
	if err != nil || done {
		return err
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-ticker.C:
			timer.Stop()
		}
		done, err := c.pullOnce(ctx)
		if err != nil || done {
			return err
		}
	}
	c.log.Debugf("Propagation grace period of %s elapsed", c.grace)
	return nil
}

func (c *Client) pullOnce(ctx context.Context) (bool, error) {
	res, err := c.Pull(ctx)
	if err != nil {
		if fatal := c.localFailure(ctx, err); fatal != nil {
			return false, fatal
		}
		c.log.Warnf("Could not pull remote changes: %v", err)
		return false, nil
	}
	return res.Added > 0, nil
}

// localFailure returns err when it must not be swallowed as a remote hiccup.
func (c *Client) localFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, kerrors.ErrStoreUnavailable) {
		return err
	}
	return nil
}

// Close closes the backend.
func (c *Client) Close() error {
	return c.backend.Close()
}

// Offline is a remote with no account. It never propagates anything.
type Offline struct{}

func (Offline) AccountStatus(ctx context.Context) (AccountStatus, error) {
	return StatusNoAccount, nil
}

func (Offline) AwaitPropagation(ctx context.Context, hasPendingLocalChanges bool) error {
	return nil
}

func (Offline) Publish(ctx context.Context) error {
	return nil
}

func (Offline) Close() error {
	return nil
}
