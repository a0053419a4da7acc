// Package keymanager owns the lifecycle of the device's private key.
//
// GetOrCreateKey returns the one key for this user, creating it only when
// neither the local store nor the remote has one. When several devices
// race to create a key, every copy is kept until the next call, which
// keeps the oldest record and deletes the rest. No lock is held across the
// remote wait, so callers on the same store may interleave freely.
package keymanager
