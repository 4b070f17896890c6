/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vbaccumulator implements a bilinear-pairing accumulator over the BLS12-381 curve
// with constant-size batch membership witnesses, following the construction in
// https://eprint.iacr.org/2020/777.pdf.
//
// The accumulator value and all witnesses are single G1 points. A witness for any subset
// of the accumulated attributes is aggregated from the per-attribute witnesses without
// knowledge of the accumulator secret, and its size does not depend on the subset size.
package vbaccumulator

import (
	"encoding/binary"
	"errors"
	"fmt"

	ml "github.com/IBM/mathlib"

	"github.com/hyperledger/aries-sdvc-go/pkg/crypto/primitive/bbs12381g2pub"
)

// nolint:gochecknoglobals
var curve = ml.Curves[ml.BLS12_381_BBS]

// Number of bytes in scalar compressed form.
const frCompressedSize = 32

var (
	// nolint:gochecknoglobals
	// Number of bytes in G1 X coordinate.
	g1CompressedSize = curve.CompressedG1ByteSize

	// nolint:gochecknoglobals
	// Number of bytes in G2 X(a, b) coordinate.
	g2CompressedSize = curve.CompressedG2ByteSize
)

// VBAccumulator accumulates attributes into a single G1 point and issues membership witnesses.
type VBAccumulator struct{}

// New creates a new VBAccumulator.
func New() *VBAccumulator {
	return &VBAccumulator{}
}

// Accumulator is an accumulator value over a set of attributes.
type Accumulator struct {
	V *ml.G1
}

// ParseAccumulator parses an Accumulator from bytes.
// The identity point trivially satisfies the membership pairing check for any
// attributes and is rejected.
func ParseAccumulator(accBytes []byte) (*Accumulator, error) {
	if len(accBytes) != g1CompressedSize {
		return nil, errors.New("invalid size of accumulator")
	}

	v, err := curve.NewG1FromCompressed(accBytes)
	if err != nil {
		return nil, fmt.Errorf("deserialize G1 compressed accumulator: %w", err)
	}

	if v.IsInfinity() {
		return nil, errors.New("invalid accumulator")
	}

	return &Accumulator{V: v}, nil
}

// ToBytes converts Accumulator to bytes.
func (acc *Accumulator) ToBytes() []byte {
	return acc.V.Compressed()
}

// Accumulate maps attributes to scalars and accumulates them under the accumulator secret key.
func (a *VBAccumulator) Accumulate(attributes [][]byte, privKeyBytes []byte) ([]byte, error) {
	privKey, err := UnmarshalPrivateKey(privKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("unmarshal private key: %w", err)
	}

	terms, err := accumulatorTerms(attributesToFr(attributes), privKey.Alpha)
	if err != nil {
		return nil, err
	}

	acc := accumulate(terms)

	return acc.ToBytes(), nil
}

// AccumulateWithWitnesses accumulates attributes and returns the accumulator
// together with a membership witness for every attribute.
func (a *VBAccumulator) AccumulateWithWitnesses(attributes [][]byte, privKeyBytes []byte) ([]byte, [][]byte, error) {
	privKey, err := UnmarshalPrivateKey(privKeyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal private key: %w", err)
	}

	terms, err := accumulatorTerms(attributesToFr(attributes), privKey.Alpha)
	if err != nil {
		return nil, nil, err
	}

	acc := accumulate(terms)

	witnessBytes := make([][]byte, len(terms))

	for i, term := range terms {
		termInv := term.Copy()
		termInv.InvModP(curve.GroupOrder)

		witness := &Witness{W: acc.V.Mul(frToRepr(termInv))}
		witnessBytes[i] = witness.ToBytes()
	}

	return acc.ToBytes(), witnessBytes, nil
}

func accumulate(terms []*ml.Zr) *Accumulator {
	prod := curve.NewZrFromInt(1)
	for _, term := range terms {
		prod = prod.Mul(term)
	}

	return &Accumulator{V: curve.GenG1.Mul(frToRepr(prod))}
}

// accumulatorTerms returns the shifted attribute scalars.
// Attributes that map to the same scalar cannot be told apart by a membership
// witness, so duplicates are rejected.
func accumulatorTerms(attrs []*ml.Zr, alpha *ml.Zr) ([]*ml.Zr, error) {
	terms := make([]*ml.Zr, len(attrs))
	seen := make(map[string]struct{}, len(attrs))

	for i, y := range attrs {
		yRepr := frToRepr(y)

		if _, ok := seen[string(yRepr.Bytes())]; ok {
			return nil, errors.New("duplicate attribute")
		}

		seen[string(yRepr.Bytes())] = struct{}{}

		term := yRepr.Plus(alpha)
		term.Mod(curve.GroupOrder)

		if isZeroFr(term) {
			return nil, errors.New("invalid attribute value")
		}

		terms[i] = term
	}

	return terms, nil
}

func attributesToFr(attributes [][]byte) []*ml.Zr {
	attrsFr := make([]*ml.Zr, len(attributes))

	for i := range attributes {
		attrsFr[i] = bbs12381g2pub.FrFromOKM(attributes[i])
	}

	return attrsFr
}

func frToRepr(fr *ml.Zr) *ml.Zr {
	frRepr := fr.Copy()
	frRepr.Mod(curve.GroupOrder)

	return frRepr
}

func isZeroFr(fr *ml.Zr) bool {
	return fr.Equals(curve.NewZrFromInt(0))
}

func negateG1(p *ml.G1) *ml.G1 {
	neg := curve.NewG1()
	neg.Sub(p)

	return neg
}

func compareTwoPairings(p1 *ml.G1, q1 *ml.G2,
	p2 *ml.G1, q2 *ml.G2) bool {
	p := curve.Pairing2(q1, p1, q2, p2)
	p = curve.FExp(p)

	return p.IsUnity()
}

func uint32ToBytes(value uint32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, value)

	return bytes
}

func uint32FromBytes(bytes []byte) uint32 {
	return binary.BigEndian.Uint32(bytes)
}
