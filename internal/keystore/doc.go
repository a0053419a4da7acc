// Package keystore persists private key records locally.
//
// A Store holds zero or more records, each with the raw private key bytes
// and a creation timestamp. Records are read sorted oldest first, with ties
// broken by the order in which this store inserted them. Mutations happen
// inside a Tx and become visible only on Commit, which is all or nothing.
//
// # Drivers
//
//   - MemoryStore: an in-process ledger guarded by a mutex
//   - FileStore: a TOML document replaced atomically with renameio
//   - PostgresStore: a private_keys table written through pgx transactions
//
// # Replication
//
// Every driver is also a Replica. Each committed mutation appends a Change
// to an outbox journal, which the sync layer pushes to the remote service
// and then acknowledges. Merge applies a remote Snapshot: remote records
// unknown locally are imported with their original ID and timestamp, and
// remote tombstones delete local records. Deleted IDs are remembered so a
// stale replica cannot resurrect a record that was already removed.
// Merges never write the journal, which keeps remote changes from echoing
// back.
package keystore
