package keycodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x448"
)

type x448Curve struct{}

func (x448Curve) scalarSize() int { return x448.Size }

func (x448Curve) generate(rand io.Reader) ([]byte, error) {
	var secret x448.Key
	if _, err := io.ReadFull(rand, secret[:]); err != nil {
		return nil, err
	}
	return secret[:], nil
}

func (x448Curve) derive(scalar []byte) ([]byte, error) {
	if isZero(scalar) {
		return nil, errors.New("zero scalar")
	}
	var secret, public x448.Key
	copy(secret[:], scalar)
	x448.KeyGen(&public, &secret)
	return public[:], nil
}

func (x448Curve) agree(scalar, peer []byte) ([]byte, error) {
	if len(peer) != x448.Size {
		return nil, fmt.Errorf("point must be %d bytes, got %d", x448.Size, len(peer))
	}
	var secret, public, shared x448.Key
	copy(secret[:], scalar)
	copy(public[:], peer)
	if !x448.Shared(&shared, &secret, &public) {
		return nil, errors.New("low order point")
	}
	return shared[:], nil
}
