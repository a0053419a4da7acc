package keycodec

import (
	"crypto/ecdh"
	"io"
)

type p256Curve struct{}

func (p256Curve) scalarSize() int { return 32 }

func (p256Curve) generate(rand io.Reader) ([]byte, error) {
	key, err := ecdh.P256().GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return key.Bytes(), nil
}

func (p256Curve) derive(scalar []byte) ([]byte, error) {
	key, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, err
	}
	return key.PublicKey().Bytes(), nil
}

func (p256Curve) agree(scalar, peer []byte) ([]byte, error) {
	key, err := ecdh.P256().NewPrivateKey(scalar)
	if err != nil {
		return nil, err
	}
	pub, err := ecdh.P256().NewPublicKey(peer)
	if err != nil {
		return nil, err
	}
	return key.ECDH(pub)
}
