/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package csd implements the compact selective disclosure scheme. The issuer
// accumulates all claims of a set into a single BLS12-381 G1 point and signs
// it with an ECDSA P-256 key; the holder keeps one membership witness per
// claim. Disclosing any subset aggregates the witnesses of the disclosed
// claims into one G1 point, so presentations stay constant size no matter
// how many claims they reveal.
//
// The issuer key embeds a structured reference string sized at key
// generation, which caps the number of claims a single credential may carry.
package csd

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/hyperledger/aries-sdvc-go/pkg/crypto/primitive/vbaccumulator"
	"github.com/hyperledger/aries-sdvc-go/pkg/crypto/signer"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

const (
	accPrivKeySize = 32
	sigPrivKeySize = 32
	witnessSize    = 48
)

// Backend implements the csd scheme.
type Backend struct{}

// New returns a csd backend.
func New() *Backend {
	return &Backend{}
}

// Scheme returns disclosure.CSD.
func (b *Backend) Scheme() disclosure.Scheme {
	return disclosure.CSD
}

// KeyPair is the issuer key material of the csd scheme: an accumulator key
// pair plus an ECDSA P-256 binding key.
type KeyPair struct {
	accPub       *vbaccumulator.PublicKey
	accPubBytes  []byte
	accPrivBytes []byte
	signer       *signer.ECDSASigner
}

// GenerateKeyPair returns a fresh issuer key pair able to carry credentials
// of up to maxClaims claims.
func GenerateKeyPair(maxClaims int) (*KeyPair, error) {
	accPub, accPriv, err := vbaccumulator.GenerateKeyPair(maxClaims)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "generate accumulator keys: %s", err)
	}

	accPubBytes, err := accPub.Marshal()
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "marshal accumulator public key: %s", err)
	}

	accPrivBytes, err := accPriv.Marshal()
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "marshal accumulator private key: %s", err)
	}

	ecdsaSigner, err := signer.NewECDSAP256Signer()
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "generate signing key: %s", err)
	}

	return &KeyPair{
		accPub:       accPub,
		accPubBytes:  accPubBytes,
		accPrivBytes: accPrivBytes,
		signer:       ecdsaSigner,
	}, nil
}

// ParseKeyPair reconstructs a key pair from Bytes output.
func ParseKeyPair(keyPairBytes []byte) (*KeyPair, error) {
	if len(keyPairBytes) < 4 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated key pair")
	}

	accPubLen := int(binary.BigEndian.Uint32(keyPairBytes))

	if len(keyPairBytes) != 4+accPubLen+accPrivKeySize+sigPrivKeySize {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of key pair: %d", len(keyPairBytes))
	}

	accPubBytes := keyPairBytes[4 : 4+accPubLen]

	accPub, err := vbaccumulator.UnmarshalPublicKey(accPubBytes)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse accumulator public key: %s", err)
	}

	accPrivBytes := keyPairBytes[4+accPubLen : 4+accPubLen+accPrivKeySize]

	if _, err := vbaccumulator.UnmarshalPrivateKey(accPrivBytes); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse accumulator private key: %s", err)
	}

	sigPrivKey, err := signer.ParseECDSAP256PrivateKey(keyPairBytes[4+accPubLen+accPrivKeySize:])
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse signing key: %s", err)
	}

	return &KeyPair{
		accPub:       accPub,
		accPubBytes:  bytes.Clone(accPubBytes),
		accPrivBytes: bytes.Clone(accPrivBytes),
		signer:       signer.GetECDSAP256Signer(sigPrivKey),
	}, nil
}

// Scheme returns disclosure.CSD.
func (kp *KeyPair) Scheme() disclosure.Scheme {
	return disclosure.CSD
}

// Public returns the verification half of the key pair.
func (kp *KeyPair) Public() disclosure.PublicKey {
	return &PublicKey{
		accPub:      kp.accPub,
		accPubBytes: kp.accPubBytes,
		sigPubBytes: kp.signer.MarshalPublicKey(),
	}
}

// MaxClaims returns the claim capacity fixed at key generation.
func (kp *KeyPair) MaxClaims() int {
	return kp.accPub.MaxAttributes()
}

// Bytes returns the serialized key pair.
func (kp *KeyPair) Bytes() []byte {
	out := make([]byte, 4, 4+len(kp.accPubBytes)+accPrivKeySize+sigPrivKeySize)
	binary.BigEndian.PutUint32(out, uint32(len(kp.accPubBytes)))

	out = append(out, kp.accPubBytes...)
	out = append(out, kp.accPrivBytes...)

	return append(out, kp.signer.MarshalPrivateKey()...)
}

// PublicKey is the issuer verification key of the csd scheme.
type PublicKey struct {
	accPub      *vbaccumulator.PublicKey
	accPubBytes []byte
	sigPubBytes []byte
}

// ParsePublicKey reconstructs a public key from Bytes output.
func ParsePublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if len(pubKeyBytes) < 4 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated public key")
	}

	accPubLen := int(binary.BigEndian.Uint32(pubKeyBytes))

	if accPubLen < 0 || len(pubKeyBytes) != 4+accPubLen+33 {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of public key: %d", len(pubKeyBytes))
	}

	accPubBytes := pubKeyBytes[4 : 4+accPubLen]

	accPub, err := vbaccumulator.UnmarshalPublicKey(accPubBytes)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse accumulator public key: %s", err)
	}

	sigPubBytes := pubKeyBytes[4+accPubLen:]

	if _, err := signer.ParseECDSAP256PublicKey(sigPubBytes); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse signing public key: %s", err)
	}

	return &PublicKey{
		accPub:      accPub,
		accPubBytes: bytes.Clone(accPubBytes),
		sigPubBytes: bytes.Clone(sigPubBytes),
	}, nil
}

// Scheme returns disclosure.CSD.
func (pk *PublicKey) Scheme() disclosure.Scheme {
	return disclosure.CSD
}

// Bytes returns the serialized public key.
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, 4, 4+len(pk.accPubBytes)+len(pk.sigPubBytes))
	binary.BigEndian.PutUint32(out, uint32(len(pk.accPubBytes)))

	out = append(out, pk.accPubBytes...)

	return append(out, pk.sigPubBytes...)
}

// MaxClaims returns the claim capacity of the issuer key.
func (pk *PublicKey) MaxClaims() int {
	return pk.accPub.MaxAttributes()
}

// Issue accumulates the claim set into a single commitment point and signs
// it. The credential's Aux holds one membership witness per claim.
func (b *Backend) Issue(cs *claimset.ClaimSet, keyPair disclosure.KeyPair) (*disclosure.Credential, error) {
	kp, ok := keyPair.(*KeyPair)
	if !ok || kp == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer key pair is not a csd key pair")
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	if cs.Len() > kp.MaxClaims() {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"claim set size %d exceeds key capacity %d", cs.Len(), kp.MaxClaims())
	}

	accBytes, witnesses, err := vbaccumulator.New().AccumulateWithWitnesses(cs.Encodings(), kp.accPrivBytes)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "accumulate claims: %s", err)
	}

	signature, err := kp.signer.Sign(accBytes)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "sign commitment: %s", err)
	}

	return &disclosure.Credential{
		Scheme:     disclosure.CSD,
		Commitment: accBytes,
		Signature:  signature,
		Aux:        marshalWitnesses(witnesses),
	}, nil
}

// Disclose aggregates the witnesses of the disclosed claims into a single
// constant-size witness point.
func (b *Backend) Disclose(cred *disclosure.Credential, cs *claimset.ClaimSet,
	indices []int) (*disclosure.Presentation, error) {
	if cred == nil || cred.Scheme != disclosure.CSD {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "credential scheme is not csd")
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	witnesses, err := parseWitnesses(cred.Aux, cs.Len())
	if err != nil {
		return nil, err
	}

	claims, err := cs.Subset(indices)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "select disclosed claims: %s", err)
	}

	aggregated, err := vbaccumulator.New().AggregateWitnesses(cs.Encodings(), witnesses, cred.Commitment, indices)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "aggregate witnesses: %s", err)
	}

	return &disclosure.Presentation{
		Scheme:     disclosure.CSD,
		Disclosed:  claims,
		Commitment: cred.Commitment,
		Witness:    aggregated,
		Signature:  cred.Signature,
	}, nil
}

// Verify checks the issuer binding signature over the commitment and the
// accumulator membership relation for the disclosed claims.
func (b *Backend) Verify(pres *disclosure.Presentation, pub disclosure.PublicKey) ([]claimset.Claim, error) {
	pk, ok := pub.(*PublicKey)
	if !ok || pk == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer public key is not a csd key")
	}

	if pres == nil || pres.Scheme != disclosure.CSD {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "presentation scheme is not csd")
	}

	if err := disclosure.ValidateDisclosed(pres.Disclosed); err != nil {
		return nil, err
	}

	if len(pres.Disclosed) > pk.MaxClaims() {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"%d disclosed claims exceed key capacity %d", len(pres.Disclosed), pk.MaxClaims())
	}

	if _, err := vbaccumulator.ParseAccumulator(pres.Commitment); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse commitment: %s", err)
	}

	if _, err := vbaccumulator.ParseWitness(pres.Witness); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse witness: %s", err)
	}

	if err := signer.NewECDSAP256Verifier().Verify(pk.sigPubBytes, pres.Commitment, pres.Signature); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "binding signature: %s", err)
	}

	encodings := make([][]byte, len(pres.Disclosed))
	for i := range pres.Disclosed {
		encodings[i] = claimset.EncodeClaim(pres.Disclosed[i])
	}

	if err := vbaccumulator.New().VerifyMembership(encodings, pres.Commitment, pres.Witness,
		pk.accPubBytes); err != nil {
		return nil, errors.Wrap(disclosure.ErrProofInconsistency, "accumulator relation does not hold")
	}

	return pres.Disclosed, nil
}

func marshalWitnesses(witnesses [][]byte) []byte {
	out := make([]byte, 4, 4+len(witnesses)*witnessSize)
	binary.BigEndian.PutUint32(out, uint32(len(witnesses)))

	for _, witness := range witnesses {
		out = append(out, witness...)
	}

	return out
}

func parseWitnesses(aux []byte, claims int) ([][]byte, error) {
	if len(aux) < 4 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated witness material")
	}

	count := int(binary.BigEndian.Uint32(aux))

	if count != claims {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"witness material carries %d witnesses for %d claims", count, claims)
	}

	if len(aux) != 4+count*witnessSize {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of witness material: %d", len(aux))
	}

	witnesses := make([][]byte, count)
	for i := 0; i < count; i++ {
		witnesses[i] = aux[4+i*witnessSize : 4+(i+1)*witnessSize]
	}

	return witnesses, nil
}
