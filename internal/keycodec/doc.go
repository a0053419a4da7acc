// Package keycodec converts key-agreement private keys to and from their raw
// byte representation and derives the matching public keys.
//
// Three curves are supported:
//
//   - p256: NIST P-256 via crypto/ecdh (32-byte scalar, 65-byte uncompressed point)
//   - x25519: golang.org/x/crypto/curve25519 (32-byte scalar and point)
//   - x448: cloudflare/circl (56-byte scalar and point)
//
// Encodings are fixed length per curve, and Encode/Decode round trip exactly.
// Decode rejects bytes that are not a valid scalar with ErrInvalidKeyEncoding,
// so store corruption surfaces instead of silently producing a different key.
package keycodec
