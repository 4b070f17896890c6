/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package disclosure

import (
	"encoding/binary"
	"fmt"

	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

// Credential is the issuer-produced artifact binding a commitment over a
// claim set to the issuer key. It is held by the holder and never shown to
// verifiers directly; presentations are derived from it.
type Credential struct {
	Scheme Scheme

	// Commitment is the scheme-specific commitment to the full claim set.
	Commitment []byte

	// Signature is the issuer signature binding the commitment.
	Signature []byte

	// Aux is holder-private issuance material: per-claim witnesses for csd,
	// the salt seed for sd and merkle, the issuer public key for bbs. It is
	// not part of any presentation.
	Aux []byte
}

// Presentation is the holder-produced artifact revealing a subset of claims
// together with the evidence a verifier needs to check them.
type Presentation struct {
	Scheme Scheme

	// Disclosed holds the revealed claims in ascending index order.
	Disclosed []claimset.Claim

	// Commitment carries the credential commitment where the scheme reveals
	// it; empty for bbs, whose proof never shows the signed commitment.
	Commitment []byte

	// Witness is the scheme-specific disclosure evidence: an aggregated
	// accumulator witness, revealed salts, inclusion paths, or a proof of
	// knowledge with its nonce.
	Witness []byte

	// Signature carries the issuer binding signature where the scheme
	// reveals it; empty for bbs.
	Signature []byte
}

// MarshalBinary returns the deterministic binary encoding of the credential.
func (c *Credential) MarshalBinary() ([]byte, error) {
	if !validScheme(c.Scheme) {
		return nil, fmt.Errorf("unknown scheme %d: %w", c.Scheme, ErrMalformedInput)
	}

	encoded := []byte{byte(c.Scheme)}
	encoded = appendField(encoded, c.Commitment)
	encoded = appendField(encoded, c.Signature)
	encoded = appendField(encoded, c.Aux)

	return encoded, nil
}

// ParseCredential parses a credential encoded by Credential.MarshalBinary.
func ParseCredential(raw []byte) (*Credential, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty credential: %w", ErrMalformedInput)
	}

	cred := &Credential{Scheme: Scheme(raw[0])}

	if !validScheme(cred.Scheme) {
		return nil, fmt.Errorf("unknown scheme %d: %w", raw[0], ErrMalformedInput)
	}

	offset := 1

	var err error

	for _, field := range []*[]byte{&cred.Commitment, &cred.Signature, &cred.Aux} {
		*field, offset, err = readField(raw, offset)
		if err != nil {
			return nil, fmt.Errorf("truncated credential: %w", ErrMalformedInput)
		}
	}

	if offset != len(raw) {
		return nil, fmt.Errorf("trailing bytes after credential: %w", ErrMalformedInput)
	}

	return cred, nil
}

// MarshalBinary returns the deterministic binary encoding of the
// presentation. Disclosed claims must already be in ascending index order.
func (p *Presentation) MarshalBinary() ([]byte, error) {
	if !validScheme(p.Scheme) {
		return nil, fmt.Errorf("unknown scheme %d: %w", p.Scheme, ErrMalformedInput)
	}

	if err := ValidateDisclosed(p.Disclosed); err != nil {
		return nil, err
	}

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(p.Disclosed)))

	encoded := append([]byte{byte(p.Scheme)}, count...)

	for i := range p.Disclosed {
		index := make([]byte, 4)
		binary.BigEndian.PutUint32(index, p.Disclosed[i].Index)

		encoded = append(encoded, index...)
		encoded = appendField(encoded, p.Disclosed[i].Key)
		encoded = appendField(encoded, p.Disclosed[i].Value)
	}

	encoded = appendField(encoded, p.Commitment)
	encoded = appendField(encoded, p.Witness)
	encoded = appendField(encoded, p.Signature)

	return encoded, nil
}

// ParsePresentation parses a presentation encoded by
// Presentation.MarshalBinary.
func ParsePresentation(raw []byte) (*Presentation, error) {
	if len(raw) < 5 {
		return nil, fmt.Errorf("truncated presentation: %w", ErrMalformedInput)
	}

	pres := &Presentation{Scheme: Scheme(raw[0])}

	if !validScheme(pres.Scheme) {
		return nil, fmt.Errorf("unknown scheme %d: %w", raw[0], ErrMalformedInput)
	}

	count := int(binary.BigEndian.Uint32(raw[1:]))
	offset := 5

	for i := 0; i < count; i++ {
		if offset+4 > len(raw) {
			return nil, fmt.Errorf("truncated presentation: %w", ErrMalformedInput)
		}

		claim := claimset.Claim{Index: binary.BigEndian.Uint32(raw[offset:])}
		offset += 4

		var err error

		claim.Key, offset, err = readField(raw, offset)
		if err != nil {
			return nil, fmt.Errorf("truncated presentation: %w", ErrMalformedInput)
		}

		claim.Value, offset, err = readField(raw, offset)
		if err != nil {
			return nil, fmt.Errorf("truncated presentation: %w", ErrMalformedInput)
		}

		pres.Disclosed = append(pres.Disclosed, claim)
	}

	var err error

	for _, field := range []*[]byte{&pres.Commitment, &pres.Witness, &pres.Signature} {
		*field, offset, err = readField(raw, offset)
		if err != nil {
			return nil, fmt.Errorf("truncated presentation: %w", ErrMalformedInput)
		}
	}

	if offset != len(raw) {
		return nil, fmt.Errorf("trailing bytes after presentation: %w", ErrMalformedInput)
	}

	if err := ValidateDisclosed(pres.Disclosed); err != nil {
		return nil, err
	}

	return pres, nil
}

// ValidateDisclosed checks that disclosed claims are in strictly ascending
// index order and carry non-empty keys.
func ValidateDisclosed(claims []claimset.Claim) error {
	for i := range claims {
		if len(claims[i].Key) == 0 {
			return fmt.Errorf("empty key in disclosed claim %d: %w", i, ErrMalformedInput)
		}

		if i > 0 && claims[i].Index <= claims[i-1].Index {
			return fmt.Errorf("disclosed claim indices out of order: %w", ErrMalformedInput)
		}
	}

	return nil
}

func appendField(encoded, field []byte) []byte {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(field)))

	return append(append(encoded, length...), field...)
}

func readField(raw []byte, offset int) ([]byte, int, error) {
	if offset+4 > len(raw) {
		return nil, 0, fmt.Errorf("truncated field")
	}

	length := int(binary.BigEndian.Uint32(raw[offset:]))
	offset += 4

	if length == 0 {
		return nil, offset, nil
	}

	if length < 0 || offset+length > len(raw) {
		return nil, 0, fmt.Errorf("truncated field")
	}

	field := make([]byte, length)
	copy(field, raw[offset:offset+length])

	return field, offset + length, nil
}
