/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vbaccumulator

import (
	"crypto/rand"
	"errors"
	"fmt"

	ml "github.com/IBM/mathlib"
)

// PublicKey holds the powers of the accumulator secret in G2,
// starting with the group generator at index 0.
type PublicKey struct {
	SRS []*ml.G2
}

// PrivateKey is the accumulator secret.
type PrivateKey struct {
	Alpha *ml.Zr
}

// GenerateKeyPair generates an accumulator key pair supporting membership
// witnesses over subsets of up to maxAttrs attributes.
func GenerateKeyPair(maxAttrs int) (*PublicKey, *PrivateKey, error) {
	if maxAttrs < 1 {
		return nil, nil, errors.New("invalid max attributes count")
	}

	alpha := curve.NewRandomZr(rand.Reader)

	srs := make([]*ml.G2, maxAttrs+1)
	pow := curve.NewZrFromInt(1)

	for k := range srs {
		srs[k] = curve.GenG2.Mul(frToRepr(pow))
		pow = pow.Mul(alpha)
	}

	return &PublicKey{SRS: srs}, &PrivateKey{Alpha: alpha}, nil
}

// MaxAttributes returns the largest subset size the public key can verify.
func (pk *PublicKey) MaxAttributes() int {
	return len(pk.SRS) - 1
}

// Marshal marshals PublicKey.
func (pk *PublicKey) Marshal() ([]byte, error) {
	bytes := make([]byte, 0, 4+len(pk.SRS)*g2CompressedSize)
	bytes = append(bytes, uint32ToBytes(uint32(len(pk.SRS)))...)

	for _, p := range pk.SRS {
		bytes = append(bytes, p.Compressed()...)
	}

	return bytes, nil
}

// UnmarshalPublicKey unmarshals PublicKey.
func UnmarshalPublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if len(pubKeyBytes) < 4 {
		return nil, errors.New("invalid size of public key")
	}

	count := int(uint32FromBytes(pubKeyBytes[:4]))
	if count < 2 || len(pubKeyBytes) != 4+count*g2CompressedSize {
		return nil, errors.New("invalid size of public key")
	}

	srs := make([]*ml.G2, count)
	offset := 4

	for k := range srs {
		p, err := curve.NewG2FromCompressed(pubKeyBytes[offset : offset+g2CompressedSize])
		if err != nil {
			return nil, fmt.Errorf("deserialize public key: %w", err)
		}

		srs[k] = p
		offset += g2CompressedSize
	}

	return &PublicKey{SRS: srs}, nil
}

// Marshal marshals PrivateKey.
func (k *PrivateKey) Marshal() ([]byte, error) {
	bytes := frToRepr(k.Alpha).Bytes()

	return bytes, nil
}

// UnmarshalPrivateKey unmarshals PrivateKey.
func UnmarshalPrivateKey(privKeyBytes []byte) (*PrivateKey, error) {
	if len(privKeyBytes) != frCompressedSize {
		return nil, errors.New("invalid size of private key")
	}

	return &PrivateKey{
		Alpha: frToRepr(curve.NewZrFromBytes(privKeyBytes)),
	}, nil
}
