package keycodec

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

type x25519Curve struct{}

func (x25519Curve) scalarSize() int { return curve25519.ScalarSize }

func (x25519Curve) generate(rand io.Reader) ([]byte, error) {
	scalar := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand, scalar); err != nil {
		return nil, err
	}
	return scalar, nil
}

func (x25519Curve) derive(scalar []byte) ([]byte, error) {
	if isZero(scalar) {
		return nil, errors.New("zero scalar")
	}
	return curve25519.X25519(scalar, curve25519.Basepoint)
}

func (x25519Curve) agree(scalar, peer []byte) ([]byte, error) {
	if len(peer) != curve25519.PointSize {
		return nil, fmt.Errorf("point must be %d bytes, got %d", curve25519.PointSize, len(peer))
	}
	return curve25519.X25519(scalar, peer)
}
