// Package audit records key lifecycle operations.
//
// Every operation that changes or reveals key material (key creation,
// deduplication, deletion, shared secret derivation, account changes) is
// appended to a per-user audit log. Entries say which device did what and
// which record was involved; key bytes are never logged.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) in the
// keysync data directory:
//
//	$XDG_DATA_HOME/keysync/audit.jsonl
//
// # Usage
//
//	entry := audit.LogWithUser("create")
//	entry.RecordID = res.Record.ID
//	audit.Log(entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If the log cannot be written the
// operation continues without error.
//
// Malformed lines are skipped when reading, which tolerates a partial
// write at the end of the file.
package audit
