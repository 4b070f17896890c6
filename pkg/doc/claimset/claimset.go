/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package claimset provides the ordered claim set model shared by all
// selective disclosure backends. A claim set assigns a stable index to every
// key/value pair and defines the canonical byte encoding that commitments,
// signatures and proofs are computed over. Two claim sets with the same pairs
// in the same order produce identical encodings on every platform.
package claimset

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/slices"
)

// MaxClaims is the largest number of claims a single set may hold. Proof
// payloads carry claim counts as 16-bit integers.
const MaxClaims = 65535

// Pair is a single key/value input to New. Values may be empty, keys may not.
type Pair struct {
	Key   []byte
	Value []byte
}

// Claim is one indexed claim of a set. Index is the position assigned by New
// and is part of the canonical encoding, so the same key/value pair at two
// different positions encodes differently.
type Claim struct {
	Index uint32
	Key   []byte
	Value []byte
}

// ClaimSet is an immutable ordered collection of claims.
type ClaimSet struct {
	claims []Claim
}

// New builds a claim set from pairs, assigning indices 0..n-1 in input order.
func New(pairs []Pair) (*ClaimSet, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("empty claim set")
	}

	if len(pairs) > MaxClaims {
		return nil, fmt.Errorf("invalid size: %d claims is larger than %d", len(pairs), MaxClaims)
	}

	claims := make([]Claim, len(pairs))

	for i, pair := range pairs {
		if len(pair.Key) == 0 {
			return nil, fmt.Errorf("empty claim key at index %d", i)
		}

		claims[i] = Claim{
			Index: uint32(i),
			Key:   slices.Clone(pair.Key),
			Value: slices.Clone(pair.Value),
		}
	}

	return &ClaimSet{claims: claims}, nil
}

// Len returns the number of claims in the set.
func (s *ClaimSet) Len() int {
	return len(s.claims)
}

// Claims returns the claims in index order. The returned claims share the
// set's backing byte storage and must be treated as read-only.
func (s *ClaimSet) Claims() []Claim {
	return slices.Clone(s.claims)
}

// Subset returns the claims at the given indices in ascending index order.
// Indices may be passed in any order; duplicates and out-of-range indices are
// rejected.
func (s *ClaimSet) Subset(indices []int) ([]Claim, error) {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)

	claims := make([]Claim, len(sorted))

	for i, ind := range sorted {
		if ind < 0 || ind >= len(s.claims) {
			return nil, fmt.Errorf("claim index out of range: %d", ind)
		}

		if i > 0 && ind == sorted[i-1] {
			return nil, fmt.Errorf("duplicate claim index: %d", ind)
		}

		claims[i] = s.claims[ind]
	}

	return claims, nil
}

// IndicesOf resolves claim keys to indices, in the order the keys are given.
// If the same key occurs more than once in the set, the first occurrence wins.
func (s *ClaimSet) IndicesOf(keys ...string) ([]int, error) {
	indices := make([]int, len(keys))

	for i, key := range keys {
		ind := -1

		for j := range s.claims {
			if string(s.claims[j].Key) == key {
				ind = j
				break
			}
		}

		if ind < 0 {
			return nil, fmt.Errorf("claim key not found: %q", key)
		}

		indices[i] = ind
	}

	return indices, nil
}

// CanonicalEncoding returns the canonical byte encoding of the whole set,
// the concatenation of every claim's encoding in index order.
func (s *ClaimSet) CanonicalEncoding() []byte {
	var encoded []byte

	for i := range s.claims {
		encoded = append(encoded, EncodeClaim(s.claims[i])...)
	}

	return encoded
}

// Encodings returns the canonical encoding of each claim in index order.
// Backends use these as the messages their commitments are computed over.
func (s *ClaimSet) Encodings() [][]byte {
	encodings := make([][]byte, len(s.claims))

	for i := range s.claims {
		encodings[i] = EncodeClaim(s.claims[i])
	}

	return encodings
}

// EncodeClaim returns the canonical encoding of a single claim:
// BE32(index) || BE32(len(key)) || key || BE32(len(value)) || value.
func EncodeClaim(claim Claim) []byte {
	encoded := make([]byte, 12+len(claim.Key)+len(claim.Value))

	binary.BigEndian.PutUint32(encoded, claim.Index)
	binary.BigEndian.PutUint32(encoded[4:], uint32(len(claim.Key)))
	offset := 8 + copy(encoded[8:], claim.Key)
	binary.BigEndian.PutUint32(encoded[offset:], uint32(len(claim.Value)))
	copy(encoded[offset+4:], claim.Value)

	return encoded
}
