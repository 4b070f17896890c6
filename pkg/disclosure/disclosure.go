/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package disclosure defines the selective disclosure protocol shared by the
// interchangeable backend schemes: issuers commit to a claim set and sign the
// commitment, holders derive presentations revealing any subset of claims,
// and verifiers check a presentation against the issuer public key alone.
//
// Backends implementing the protocol live in the subpackages csd (compact
// accumulator witness), sd (salted digest array), merkle (inclusion paths)
// and bbs (BBS+ proof of knowledge). They differ in artifact sizes and in
// what an unlinkable presentation looks like, not in the protocol shape.
package disclosure

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

// Scheme identifies a selective disclosure backend.
type Scheme uint8

const (
	// CSD is the compact selective disclosure scheme: a bilinear accumulator
	// commitment with a constant-size aggregated membership witness.
	CSD Scheme = iota + 1
	// SD is the salted digest array scheme.
	SD
	// Merkle is the salted Merkle tree scheme with per-claim inclusion paths.
	Merkle
	// BBS is the BBS+ multi-message signature scheme with zero-knowledge
	// proofs of knowledge.
	BBS
)

// Protocol rejections fall into three categories. Backends wrap one of these
// sentinels into every error they return, so callers can classify rejections
// with errors.Is without depending on message text.
var (
	// ErrMalformedInput covers structurally invalid artifacts: truncated or
	// oversized encodings, unknown schemes, out-of-range or duplicate claim
	// indices, scheme mismatches between artifacts and keys.
	ErrMalformedInput = errors.New("malformed input")

	// ErrPrimitiveFailure covers well-formed artifacts whose cryptographic
	// components do not check out: points that fail deserialization, binding
	// signatures that do not verify, digests that do not match their
	// committed slots.
	ErrPrimitiveFailure = errors.New("primitive failure")

	// ErrProofInconsistency covers well-formed presentations whose proof
	// relation fails: an accumulator pairing relation that does not hold,
	// inclusion paths disagreeing on the root, a BBS+ proof that does not
	// verify against the disclosed claims.
	ErrProofInconsistency = errors.New("proof inconsistency")
)

// String returns the lowercase scheme name used in logs, CLI flags and
// benchmark output.
func (s Scheme) String() string {
	switch s {
	case CSD:
		return "csd"
	case SD:
		return "sd"
	case Merkle:
		return "merkle"
	case BBS:
		return "bbs"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseScheme resolves a scheme name as produced by Scheme.String.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "csd":
		return CSD, nil
	case "sd":
		return SD, nil
	case "merkle":
		return Merkle, nil
	case "bbs":
		return BBS, nil
	default:
		return 0, fmt.Errorf("unsupported scheme %q: %w", name, ErrMalformedInput)
	}
}

func validScheme(s Scheme) bool {
	return s >= CSD && s <= BBS
}

// KeyPair is an issuer key pair accepted by a backend's Issue. Each backend
// package owns a concrete key pair type and rejects key pairs of any other
// scheme.
type KeyPair interface {
	// Scheme identifies the backend this key pair belongs to.
	Scheme() Scheme

	// Public returns the verification half of the key pair.
	Public() PublicKey
}

// PublicKey is an issuer verification key accepted by a backend's Verify.
type PublicKey interface {
	Scheme() Scheme

	// Bytes returns the serialized form of the key.
	Bytes() []byte
}

// Backend is one selective disclosure scheme implementing the uniform
// issue/disclose/verify protocol.
type Backend interface {
	Scheme() Scheme

	// Issue commits to the claim set, signs the commitment with the issuer
	// key pair and returns the credential artifact. The credential's Aux
	// field holds holder-private material and must not be shown to verifiers.
	Issue(cs *claimset.ClaimSet, keyPair KeyPair) (*Credential, error)

	// Disclose derives a presentation from the credential revealing exactly
	// the claims at the given indices. Indices may be passed in any order;
	// the empty set and the full set are both valid.
	Disclose(cred *Credential, cs *claimset.ClaimSet, indices []int) (*Presentation, error)

	// Verify checks the presentation against the issuer public key and
	// returns the disclosed claims in ascending index order. Verification
	// uses only the presentation and the public key.
	Verify(pres *Presentation, pub PublicKey) ([]claimset.Claim, error)
}
