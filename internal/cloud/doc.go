// Package cloud talks to the eventually-consistent remote that replicates
// key records between devices.
//
// A Backend is the remote service itself: it reports the status of an
// account and stores one zone of records and tombstones per account.
// Backends exist for process memory, Redis and the keysync HTTP relay.
//
// A Client binds a Backend to a local keystore.Replica. AwaitPropagation
// pushes the replica's outbox when asked to and then polls the backend
// for a bounded grace period, merging whatever other devices have written.
// The wait is best effort: it returns when the grace period ends whether
// or not the zones have converged. Remote failures during the wait are
// logged and swallowed; only local store failures and context
// cancellation are returned.
//
// RetryPolicy wraps the account status query with a fixed number of
// attempts and a fixed backoff, stopping early once the account is
// available. Errors are treated as an inconclusive status.
package cloud
