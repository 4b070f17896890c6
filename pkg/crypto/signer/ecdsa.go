/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package signer provides ECDSA signing and verification over raw message bytes,
// with signatures in the fixed-size r||s form.
package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"
)

const p256KeySize = 32

// NewECDSAP256Signer creates a new ECDSA P256 signer with generated key.
func NewECDSAP256Signer() (*ECDSASigner, error) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	return &ECDSASigner{privateKey: privKey, PublicKey: &privKey.PublicKey, hash: crypto.SHA256}, nil
}

// GetECDSAP256Signer creates a new ECDSA P256 signer with passed ECDSA P256 private key.
func GetECDSAP256Signer(privKey *ecdsa.PrivateKey) *ECDSASigner {
	return &ECDSASigner{privateKey: privKey, PublicKey: &privKey.PublicKey, hash: crypto.SHA256}
}

// ECDSASigner makes ECDSA based signatures.
type ECDSASigner struct {
	privateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
	hash       crypto.Hash
}

// Sign signs a message.
func (es *ECDSASigner) Sign(msg []byte) ([]byte, error) {
	return signEcdsa(msg, es.privateKey, es.hash)
}

// PrivateKey returns the signing key.
func (es *ECDSASigner) PrivateKey() *ecdsa.PrivateKey {
	return es.privateKey
}

// MarshalPrivateKey marshals the signing key scalar into fixed-size bytes.
func (es *ECDSASigner) MarshalPrivateKey() []byte {
	return copyPadded(es.privateKey.D.Bytes(), p256KeySize)
}

// MarshalPublicKey marshals the public key point in compressed form.
func (es *ECDSASigner) MarshalPublicKey() []byte {
	return elliptic.MarshalCompressed(es.PublicKey.Curve, es.PublicKey.X, es.PublicKey.Y)
}

// ParseECDSAP256PrivateKey restores an ECDSA P256 private key from the scalar bytes.
func ParseECDSAP256PrivateKey(privKeyBytes []byte) (*ecdsa.PrivateKey, error) {
	if len(privKeyBytes) != p256KeySize {
		return nil, errors.New("invalid size of private key")
	}

	d := new(big.Int).SetBytes(privKeyBytes)
	if d.Sign() == 0 || d.Cmp(elliptic.P256().Params().N) >= 0 {
		return nil, errors.New("invalid private key")
	}

	privKey := new(ecdsa.PrivateKey)
	privKey.Curve = elliptic.P256()
	privKey.D = d
	privKey.X, privKey.Y = elliptic.P256().ScalarBaseMult(privKeyBytes)

	return privKey, nil
}

// ParseECDSAP256PublicKey restores an ECDSA P256 public key from its compressed point form.
func ParseECDSAP256PublicKey(pubKeyBytes []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pubKeyBytes)
	if x == nil {
		return nil, errors.New("invalid public key")
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     x,
		Y:     y,
	}, nil
}

//nolint:gomnd
func signEcdsa(msg []byte, privateKey *ecdsa.PrivateKey, hash crypto.Hash) ([]byte, error) {
	hasher := hash.New()
	_, _ = hasher.Write(msg) //nolint:errcheck
	hashed := hasher.Sum(nil)

	r, s, err := ecdsa.Sign(rand.Reader, privateKey, hashed)
	if err != nil {
		return nil, err
	}

	curveBits := privateKey.Curve.Params().BitSize

	keyBytes := curveBits / 8
	if curveBits%8 > 0 {
		keyBytes++
	}

	return append(copyPadded(r.Bytes(), keyBytes), copyPadded(s.Bytes(), keyBytes)...), nil
}

func copyPadded(source []byte, size int) []byte {
	dest := make([]byte, size)
	copy(dest[size-len(source):], source)

	return dest
}

// ECDSAP256Verifier verifies ECDSA P256 signatures in the r||s form.
type ECDSAP256Verifier struct{}

// NewECDSAP256Verifier creates a new ECDSAP256Verifier.
func NewECDSAP256Verifier() *ECDSAP256Verifier {
	return &ECDSAP256Verifier{}
}

// Verify verifies the signature of msg under the compressed public key.
func (ev *ECDSAP256Verifier) Verify(pubKeyBytes, msg, signature []byte) error {
	ecdsaPubKey, err := ParseECDSAP256PublicKey(pubKeyBytes)
	if err != nil {
		return err
	}

	if len(signature) != 2*p256KeySize {
		return errors.New("ecdsa: invalid signature size")
	}

	hasher := crypto.SHA256.New()
	_, _ = hasher.Write(msg) //nolint:errcheck
	hash := hasher.Sum(nil)

	r := big.NewInt(0).SetBytes(signature[:p256KeySize])
	s := big.NewInt(0).SetBytes(signature[p256KeySize:])

	verified := ecdsa.Verify(ecdsaPubKey, hash, r, s)
	if !verified {
		return errors.New("ecdsa: invalid signature")
	}

	return nil
}
