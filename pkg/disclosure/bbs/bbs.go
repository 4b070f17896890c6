/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package bbs implements the BBS+ selective disclosure scheme. The issuer
// signs all claims of a set with one multi-message BBS+ signature; the holder
// derives a fresh zero-knowledge proof of knowledge per presentation, opening
// only the disclosed claims. The signature itself never leaves the holder,
// so presentations are unlinkable to each other and to issuance.
//
// Unlike the other schemes the credential carries no separate commitment and
// the presentation carries no issuer signature. The credential's Aux holds
// the issuer public key, which proof derivation needs.
package bbs

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/hyperledger/aries-sdvc-go/pkg/crypto/primitive/bbs12381g2pub"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

const nonceSize = 32

// Backend implements the bbs scheme.
type Backend struct{}

// New returns a bbs backend.
func New() *Backend {
	return &Backend{}
}

// Scheme returns disclosure.BBS.
func (b *Backend) Scheme() disclosure.Scheme {
	return disclosure.BBS
}

// KeyPair is the issuer BBS+ signing key over BLS12-381 G2.
type KeyPair struct {
	pubKeyBytes  []byte
	privKeyBytes []byte
}

// GenerateKeyPair returns a fresh issuer key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pubKey, privKey, err := bbs12381g2pub.GenerateKeyPair(sha256.New, nil)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "generate BLS key pair: %s", err)
	}

	pubKeyBytes, err := pubKey.Marshal()
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "marshal public key: %s", err)
	}

	privKeyBytes, err := privKey.Marshal()
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "marshal private key: %s", err)
	}

	return &KeyPair{pubKeyBytes: pubKeyBytes, privKeyBytes: privKeyBytes}, nil
}

// ParseKeyPair reconstructs a key pair from Bytes output.
func ParseKeyPair(privKeyBytes []byte) (*KeyPair, error) {
	privKey, err := bbs12381g2pub.UnmarshalPrivateKey(privKeyBytes)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse private key: %s", err)
	}

	pubKeyBytes, err := privKey.PublicKey().Marshal()
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "marshal public key: %s", err)
	}

	return &KeyPair{pubKeyBytes: pubKeyBytes, privKeyBytes: bytes.Clone(privKeyBytes)}, nil
}

// Scheme returns disclosure.BBS.
func (kp *KeyPair) Scheme() disclosure.Scheme {
	return disclosure.BBS
}

// Public returns the verification half of the key pair.
func (kp *KeyPair) Public() disclosure.PublicKey {
	return &PublicKey{pubKeyBytes: kp.pubKeyBytes}
}

// Bytes returns the serialized private key.
func (kp *KeyPair) Bytes() []byte {
	return kp.privKeyBytes
}

// PublicKey is the issuer verification key of the bbs scheme.
type PublicKey struct {
	pubKeyBytes []byte
}

// ParsePublicKey reconstructs a public key from Bytes output.
func ParsePublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if _, err := bbs12381g2pub.UnmarshalPublicKey(pubKeyBytes); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse public key: %s", err)
	}

	return &PublicKey{pubKeyBytes: bytes.Clone(pubKeyBytes)}, nil
}

// Scheme returns disclosure.BBS.
func (pk *PublicKey) Scheme() disclosure.Scheme {
	return disclosure.BBS
}

// Bytes returns the serialized public key.
func (pk *PublicKey) Bytes() []byte {
	return pk.pubKeyBytes
}

// Issue signs the claim set with a multi-message BBS+ signature. The
// commitment to the claims is the signature itself, so the credential
// carries no separate commitment.
func (b *Backend) Issue(cs *claimset.ClaimSet, keyPair disclosure.KeyPair) (*disclosure.Credential, error) {
	kp, ok := keyPair.(*KeyPair)
	if !ok || kp == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer key pair is not a bbs key pair")
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	signature, err := bbs12381g2pub.New().Sign(cs.Encodings(), kp.privKeyBytes)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "sign claims: %s", err)
	}

	return &disclosure.Credential{
		Scheme:    disclosure.BBS,
		Signature: signature,
		Aux:       kp.pubKeyBytes,
	}, nil
}

// Disclose derives a proof of knowledge of the credential signature opening
// exactly the claims at the given indices, under a fresh nonce.
func (b *Backend) Disclose(cred *disclosure.Credential, cs *claimset.ClaimSet,
	indices []int) (*disclosure.Presentation, error) {
	if cred == nil || cred.Scheme != disclosure.BBS {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "credential scheme is not bbs")
	}

	if len(cred.Aux) == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "missing issuer key material")
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	claims, err := cs.Subset(indices)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "select disclosed claims: %s", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "generate nonce: %s", err)
	}

	// Indices were validated by Subset above, so a failure here is
	// cryptographic: unparseable key or signature bytes, or a signature
	// that does not verify against the claim set.
	proof, err := bbs12381g2pub.New().DeriveProof(cs.Encodings(), cred.Signature, nonce, cred.Aux, indices)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "derive proof: %s", err)
	}

	return &disclosure.Presentation{
		Scheme:    disclosure.BBS,
		Disclosed: claims,
		Witness:   append(nonce, proof...),
	}, nil
}

// Verify checks the proof of knowledge against the disclosed claims and the
// issuer public key. The proof must open exactly the disclosed indices.
func (b *Backend) Verify(pres *disclosure.Presentation, pub disclosure.PublicKey) ([]claimset.Claim, error) {
	pk, ok := pub.(*PublicKey)
	if !ok || pk == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer public key is not a bbs key")
	}

	if pres == nil || pres.Scheme != disclosure.BBS {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "presentation scheme is not bbs")
	}

	if len(pres.Commitment) != 0 || len(pres.Signature) != 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput,
			"bbs presentation must not carry a commitment or signature")
	}

	if err := disclosure.ValidateDisclosed(pres.Disclosed); err != nil {
		return nil, err
	}

	if len(pres.Witness) <= nonceSize {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated witness")
	}

	nonce, proof := pres.Witness[:nonceSize], pres.Witness[nonceSize:]

	revealed, err := bbs12381g2pub.New().RevealedIndexes(proof)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse proof: %s", err)
	}

	if len(revealed) != len(pres.Disclosed) {
		return nil, errors.Wrapf(disclosure.ErrProofInconsistency,
			"proof opens %d messages for %d disclosed claims", len(revealed), len(pres.Disclosed))
	}

	messages := make([][]byte, len(pres.Disclosed))

	for i := range pres.Disclosed {
		if revealed[i] != int(pres.Disclosed[i].Index) {
			return nil, errors.Wrap(disclosure.ErrProofInconsistency,
				"proof message indexes do not match disclosed claims")
		}

		messages[i] = claimset.EncodeClaim(pres.Disclosed[i])
	}

	if err := bbs12381g2pub.New().VerifyProof(messages, proof, nonce, pk.pubKeyBytes); err != nil {
		return nil, errors.Wrapf(disclosure.ErrProofInconsistency, "verify proof: %s", err)
	}

	return pres.Disclosed, nil
}
