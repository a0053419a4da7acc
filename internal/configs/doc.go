// Package configs manages keysync configuration.
//
// Configuration is stored in TOML format at:
//
//   - $XDG_CONFIG_HOME/keysync/config.toml (override with --config or KEYSYNC_CONFIG)
//
// A missing file means defaults. Durations are written as strings such as
// "1s" or "500ms".
//
// # Sections
//
//   - [key]: the curve used for new keys (p256, x25519, x448)
//   - [store]: the local record store driver (file, memory, postgres) and
//     its location
//   - [remote]: the sync backend driver (none, redis, http), its address
//     and the account keys are replicated under
//   - [sync]: status query attempts and backoff, propagation grace period
//     and poll interval
//
// # Settings
//
// Process-wide paths are initialized at startup in UserKeysyncSettings:
// the config directory, the data directory holding the key file and audit
// log, and the current username, which is the default account name.
//
// The Postgres DSN falls back to KEYSYNC_DATABASE_URL when the file does
// not set one.
package configs
