package keycodec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
)

// Curve names a supported key-agreement curve.
type Curve string

const (
	P256   Curve = "p256"
	X25519 Curve = "x25519"
	X448   Curve = "x448"
)

// DefaultCurve is used when no curve is configured.
const DefaultCurve = P256

// PrivateKey is a decoded private key together with its derived public key.
type PrivateKey struct {
	curve  Curve
	scalar []byte
	public PublicKey
}

// Curve returns the curve the key belongs to.
func (k *PrivateKey) Curve() Curve {
	return k.curve
}

// Equal reports whether both keys are on the same curve with the same scalar.
func (k *PrivateKey) Equal(other *PrivateKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.curve == other.curve && subtle.ConstantTimeCompare(k.scalar, other.scalar) == 1
}

// PublicKey is the public half of a PrivateKey.
type PublicKey struct {
	curve Curve
	point []byte
}

// Curve returns the curve the key belongs to.
func (p PublicKey) Curve() Curve {
	return p.curve
}

// Equal reports whether both public keys encode the same point.
func (p PublicKey) Equal(other PublicKey) bool {
	return p.curve == other.curve && subtle.ConstantTimeCompare(p.point, other.point) == 1
}

// curveImpl is the per-curve arithmetic behind a Codec.
type curveImpl interface {
	scalarSize() int
	generate(rand io.Reader) ([]byte, error)
	// derive validates scalar and returns the encoded public point.
	derive(scalar []byte) ([]byte, error)
	agree(scalar, peer []byte) ([]byte, error)
}

// Codec encodes, decodes and generates keys for one curve.
type Codec struct {
	curve Curve
	impl  curveImpl
	rand  io.Reader
}

// New returns the codec for curve.
func New(curve Curve) (*Codec, error) {
	var impl curveImpl
	switch curve {
	case P256:
		impl = p256Curve{}
	case X25519:
		impl = x25519Curve{}
	case X448:
		impl = x448Curve{}
	default:
		return nil, fmt.Errorf("%w: %q", kerrors.ErrUnsupportedCurve, curve)
	}
	return &Codec{curve: curve, impl: impl, rand: rand.Reader}, nil
}

// ForCurve parses a configured curve name and returns its codec.
// An empty name selects DefaultCurve.
func ForCurve(name string) (*Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return New(DefaultCurve)
	case "p256", "p-256", "secp256r1", "prime256v1":
		return New(P256)
	case "x25519", "curve25519":
		return New(X25519)
	case "x448", "curve448":
		return New(X448)
	default:
		return nil, fmt.Errorf("%w: %q", kerrors.ErrUnsupportedCurve, name)
	}
}

// Curve returns the codec's curve.
func (c *Codec) Curve() Curve {
	return c.curve
}

// KeySize returns the length of an encoded private key.
func (c *Codec) KeySize() int {
	return c.impl.scalarSize()
}

// Generate creates a fresh random private key.
func (c *Codec) Generate() (*PrivateKey, error) {
	scalar, err := c.impl.generate(c.rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", c.curve, err)
	}
	return c.Decode(scalar)
}

// Decode parses a raw private key. It returns ErrInvalidKeyEncoding when
// data is not a valid scalar for the codec's curve.
func (c *Codec) Decode(data []byte) (*PrivateKey, error) {
	if len(data) != c.impl.scalarSize() {
		return nil, fmt.Errorf("%w: %s key must be %d bytes, got %d",
			kerrors.ErrInvalidKeyEncoding, c.curve, c.impl.scalarSize(), len(data))
	}
	scalar := append([]byte(nil), data...)
	point, err := c.impl.derive(scalar)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrInvalidKeyEncoding, c.curve, err)
	}
	return &PrivateKey{
		curve:  c.curve,
		scalar: scalar,
		public: PublicKey{curve: c.curve, point: point},
	}, nil
}

// Encode returns the raw private key bytes.
func (c *Codec) Encode(key *PrivateKey) []byte {
	return append([]byte(nil), key.scalar...)
}

// PublicKey returns the public key derived from key.
func (c *Codec) PublicKey(key *PrivateKey) PublicKey {
	return key.public
}

// EncodePublic returns the raw public key bytes.
func (c *Codec) EncodePublic(pub PublicKey) []byte {
	return append([]byte(nil), pub.point...)
}

// Agree computes the shared secret between key and an encoded peer public key.
func (c *Codec) Agree(key *PrivateKey, peer []byte) ([]byte, error) {
	if key.curve != c.curve {
		return nil, fmt.Errorf("%w: key is %s, codec is %s", kerrors.ErrInvalidKeyEncoding, key.curve, c.curve)
	}
	secret, err := c.impl.agree(key.scalar, peer)
	if err != nil {
		return nil, fmt.Errorf("%w: peer %s public key: %v", kerrors.ErrInvalidKeyEncoding, c.curve, err)
	}
	return secret, nil
}

// Fingerprint returns a short colon-separated hex digest of pub for display.
func Fingerprint(pub PublicKey) string {
	return FingerprintBytes(pub.point)
}

// FingerprintBytes is Fingerprint for an encoded public key.
func FingerprintBytes(encoded []byte) string {
	sum := sha256.Sum256(encoded)
	parts := make([]string, 8)
	for i := range parts {
		parts[i] = hex.EncodeToString(sum[i : i+1])
	}
	return strings.Join(parts, ":")
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
