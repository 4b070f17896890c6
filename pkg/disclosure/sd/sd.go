/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sd implements the salted digest selective disclosure scheme. The
// issuer commits to a claim set as an array of salted SHA-256 digests, one
// per claim, and signs the array with an ECDSA P-256 key. Disclosing a claim
// reveals its salt; withheld claims stay hidden behind their digests.
//
// Salts are derived from a single random seed as HMAC-SHA256(seed, BE32(i)),
// so the holder retains 32 bytes regardless of claim count and revealed
// salts give away nothing about withheld ones.
package sd

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/hyperledger/aries-sdvc-go/pkg/crypto/signer"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

const (
	seedSize   = 32
	saltSize   = sha256.Size
	digestSize = sha256.Size
)

// Backend implements the sd scheme.
type Backend struct{}

// New returns an sd backend.
func New() *Backend {
	return &Backend{}
}

// Scheme returns disclosure.SD.
func (b *Backend) Scheme() disclosure.Scheme {
	return disclosure.SD
}

// KeyPair is the issuer ECDSA P-256 signing key of the sd scheme.
type KeyPair struct {
	signer *signer.ECDSASigner
}

// GenerateKeyPair returns a fresh issuer key pair.
func GenerateKeyPair() (*KeyPair, error) {
	ecdsaSigner, err := signer.NewECDSAP256Signer()
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "generate signing key: %s", err)
	}

	return &KeyPair{signer: ecdsaSigner}, nil
}

// ParseKeyPair reconstructs a key pair from Bytes output.
func ParseKeyPair(privKeyBytes []byte) (*KeyPair, error) {
	privKey, err := signer.ParseECDSAP256PrivateKey(privKeyBytes)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse private key: %s", err)
	}

	return &KeyPair{signer: signer.GetECDSAP256Signer(privKey)}, nil
}

// Scheme returns disclosure.SD.
func (kp *KeyPair) Scheme() disclosure.Scheme {
	return disclosure.SD
}

// Public returns the verification half of the key pair.
func (kp *KeyPair) Public() disclosure.PublicKey {
	return &PublicKey{pubKeyBytes: kp.signer.MarshalPublicKey()}
}

// Bytes returns the serialized private key.
func (kp *KeyPair) Bytes() []byte {
	return kp.signer.MarshalPrivateKey()
}

// PublicKey is the issuer verification key of the sd scheme.
type PublicKey struct {
	pubKeyBytes []byte
}

// ParsePublicKey reconstructs a public key from Bytes output.
func ParsePublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if _, err := signer.ParseECDSAP256PublicKey(pubKeyBytes); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse public key: %s", err)
	}

	return &PublicKey{pubKeyBytes: bytes.Clone(pubKeyBytes)}, nil
}

// Scheme returns disclosure.SD.
func (pk *PublicKey) Scheme() disclosure.Scheme {
	return disclosure.SD
}

// Bytes returns the serialized public key.
func (pk *PublicKey) Bytes() []byte {
	return pk.pubKeyBytes
}

// Issue commits to the claim set as a salted digest array and signs it.
func (b *Backend) Issue(cs *claimset.ClaimSet, keyPair disclosure.KeyPair) (*disclosure.Credential, error) {
	kp, ok := keyPair.(*KeyPair)
	if !ok || kp == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer key pair is not an sd key pair")
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "generate salt seed: %s", err)
	}

	commitment := buildCommitment(seed, cs.Encodings())

	signature, err := kp.signer.Sign(commitment)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "sign commitment: %s", err)
	}

	return &disclosure.Credential{
		Scheme:     disclosure.SD,
		Commitment: commitment,
		Signature:  signature,
		Aux:        seed,
	}, nil
}

// Disclose reveals the claims at the given indices together with their salts.
func (b *Backend) Disclose(cred *disclosure.Credential, cs *claimset.ClaimSet,
	indices []int) (*disclosure.Presentation, error) {
	if cred == nil || cred.Scheme != disclosure.SD {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "credential scheme is not sd")
	}

	if len(cred.Aux) != seedSize {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of salt seed: %d", len(cred.Aux))
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	if !bytes.Equal(buildCommitment(cred.Aux, cs.Encodings()), cred.Commitment) {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "claim set does not match credential commitment")
	}

	claims, err := cs.Subset(indices)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "select disclosed claims: %s", err)
	}

	witness := make([]byte, 4, 4+len(claims)*saltSize)
	binary.BigEndian.PutUint32(witness, uint32(len(claims)))

	for i := range claims {
		witness = append(witness, deriveSalt(cred.Aux, claims[i].Index)...)
	}

	return &disclosure.Presentation{
		Scheme:     disclosure.SD,
		Disclosed:  claims,
		Commitment: cred.Commitment,
		Witness:    witness,
		Signature:  cred.Signature,
	}, nil
}

// Verify checks every disclosed claim against its committed digest slot and
// the issuer binding signature over the commitment.
func (b *Backend) Verify(pres *disclosure.Presentation, pub disclosure.PublicKey) ([]claimset.Claim, error) {
	pk, ok := pub.(*PublicKey)
	if !ok || pk == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer public key is not an sd key")
	}

	if pres == nil || pres.Scheme != disclosure.SD {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "presentation scheme is not sd")
	}

	if err := disclosure.ValidateDisclosed(pres.Disclosed); err != nil {
		return nil, err
	}

	count, digests, err := parseCommitment(pres.Commitment)
	if err != nil {
		return nil, err
	}

	salts, err := parseWitness(pres.Witness, len(pres.Disclosed))
	if err != nil {
		return nil, err
	}

	if err := signer.NewECDSAP256Verifier().Verify(pk.pubKeyBytes, pres.Commitment, pres.Signature); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "binding signature: %s", err)
	}

	for i := range pres.Disclosed {
		claim := pres.Disclosed[i]

		if int(claim.Index) >= count {
			return nil, errors.Wrapf(disclosure.ErrMalformedInput, "claim index out of range: %d", claim.Index)
		}

		digest := claimDigest(salts[i], claimset.EncodeClaim(claim))

		if !bytes.Equal(digest, digests[claim.Index]) {
			return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "digest mismatch at claim index %d", claim.Index)
		}
	}

	return pres.Disclosed, nil
}

func buildCommitment(seed []byte, encodings [][]byte) []byte {
	commitment := make([]byte, 4, 4+len(encodings)*digestSize)
	binary.BigEndian.PutUint32(commitment, uint32(len(encodings)))

	for i, encoding := range encodings {
		commitment = append(commitment, claimDigest(deriveSalt(seed, uint32(i)), encoding)...)
	}

	return commitment
}

func deriveSalt(seed []byte, index uint32) []byte {
	indexBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(indexBytes, index)

	mac := hmac.New(sha256.New, seed)
	mac.Write(indexBytes)

	return mac.Sum(nil)
}

func claimDigest(salt, encoding []byte) []byte {
	digest := sha256.New()
	digest.Write(salt)
	digest.Write(encoding)

	return digest.Sum(nil)
}

func parseCommitment(commitment []byte) (int, [][]byte, error) {
	if len(commitment) < 4 {
		return 0, nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated commitment")
	}

	count := int(binary.BigEndian.Uint32(commitment))

	if len(commitment) != 4+count*digestSize {
		return 0, nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of commitment: %d", len(commitment))
	}

	digests := make([][]byte, count)
	for i := 0; i < count; i++ {
		digests[i] = commitment[4+i*digestSize : 4+(i+1)*digestSize]
	}

	return count, digests, nil
}

func parseWitness(witness []byte, disclosed int) ([][]byte, error) {
	if len(witness) < 4 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated witness")
	}

	count := int(binary.BigEndian.Uint32(witness))

	if count != disclosed {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"witness carries %d salts for %d disclosed claims", count, disclosed)
	}

	if len(witness) != 4+count*saltSize {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of witness: %d", len(witness))
	}

	salts := make([][]byte, count)
	for i := 0; i < count; i++ {
		salts[i] = witness[4+i*saltSize : 4+(i+1)*saltSize]
	}

	return salts, nil
}
