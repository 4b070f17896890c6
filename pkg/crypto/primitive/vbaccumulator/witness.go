/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vbaccumulator

import (
	"errors"
	"fmt"
	"sort"

	ml "github.com/IBM/mathlib"

	"github.com/hyperledger/aries-sdvc-go/pkg/crypto/primitive/bbs12381g2pub"
)

// Witness is a membership witness for a subset of accumulated attributes.
type Witness struct {
	W *ml.G1
}

// ParseWitness parses a Witness from bytes. The identity point is rejected
// for the same reason ParseAccumulator rejects it.
func ParseWitness(witnessBytes []byte) (*Witness, error) {
	if len(witnessBytes) != g1CompressedSize {
		return nil, errors.New("invalid size of witness")
	}

	w, err := curve.NewG1FromCompressed(witnessBytes)
	if err != nil {
		return nil, fmt.Errorf("deserialize G1 compressed witness: %w", err)
	}

	if w.IsInfinity() {
		return nil, errors.New("invalid witness")
	}

	return &Witness{W: w}, nil
}

// ToBytes converts Witness to bytes.
func (wit *Witness) ToBytes() []byte {
	return wit.W.Compressed()
}

// AggregateWitnesses combines per-attribute witnesses into a single witness
// for the attributes at revealedIndexes. The aggregation needs no secrets,
// only the attribute bytes the witnesses were issued for.
//
// An empty revealedIndexes yields a witness for the empty subset, which is
// the accumulator itself.
func (a *VBAccumulator) AggregateWitnesses(attributes [][]byte, witnesses [][]byte, accBytes []byte,
	revealedIndexes []int) ([]byte, error) {
	if len(witnesses) != len(attributes) {
		return nil, fmt.Errorf("invalid size: %d witnesses for %d attributes", len(witnesses), len(attributes))
	}

	revealed := make([]int, len(revealedIndexes))
	copy(revealed, revealedIndexes)
	sort.Ints(revealed)

	if len(revealed) == 0 {
		acc, err := ParseAccumulator(accBytes)
		if err != nil {
			return nil, fmt.Errorf("parse accumulator: %w", err)
		}

		witness := &Witness{W: acc.V}

		return witness.ToBytes(), nil
	}

	ys := make([]*ml.Zr, len(revealed))
	ws := make([]*ml.G1, len(revealed))

	for i, ind := range revealed {
		if ind < 0 || ind >= len(attributes) {
			return nil, fmt.Errorf("invalid revealed index %d", ind)
		}

		if i > 0 && revealed[i-1] == ind {
			return nil, fmt.Errorf("duplicate revealed index %d", ind)
		}

		witness, err := ParseWitness(witnesses[ind])
		if err != nil {
			return nil, fmt.Errorf("parse witness: %w", err)
		}

		ys[i] = bbs12381g2pub.FrFromOKM(attributes[ind])
		ws[i] = witness.W
	}

	coeffs, err := aggregationCoefficients(ys)
	if err != nil {
		return nil, err
	}

	agg := &Witness{W: sumOfG1Products(ws, coeffs)}

	return agg.ToBytes(), nil
}

// VerifyMembership checks a witness against the accumulator for the revealed attributes.
func (a *VBAccumulator) VerifyMembership(revealedAttributes [][]byte, accBytes, witnessBytes,
	pubKeyBytes []byte) error {
	acc, err := ParseAccumulator(accBytes)
	if err != nil {
		return fmt.Errorf("parse accumulator: %w", err)
	}

	witness, err := ParseWitness(witnessBytes)
	if err != nil {
		return fmt.Errorf("parse witness: %w", err)
	}

	pubKey, err := UnmarshalPublicKey(pubKeyBytes)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}

	if len(revealedAttributes) > pubKey.MaxAttributes() {
		return fmt.Errorf("invalid size: %d attributes is larger than supported %d",
			len(revealedAttributes), pubKey.MaxAttributes())
	}

	coeffs := subsetPolynomial(attributesToFr(revealedAttributes))

	q := sumOfG2Products(pubKey.SRS[:len(coeffs)], coeffs)

	ok := compareTwoPairings(witness.W, q, negateG1(acc.V), curve.GenG2)
	if !ok {
		return errors.New("invalid accumulator witness")
	}

	return nil
}

// aggregationCoefficients returns the partial fraction coefficients
// 1 / prod(ys[j] - ys[i], j != i) used to fold per-attribute witnesses
// into a subset witness.
func aggregationCoefficients(ys []*ml.Zr) ([]*ml.Zr, error) {
	coeffs := make([]*ml.Zr, len(ys))

	for i := range ys {
		den := curve.NewZrFromInt(1)

		for j := range ys {
			if j == i {
				continue
			}

			diff := ys[j].Minus(ys[i])
			diff.Mod(curve.GroupOrder)

			if isZeroFr(diff) {
				return nil, errors.New("duplicate attribute value")
			}

			den = den.Mul(diff)
		}

		den.InvModP(curve.GroupOrder)

		coeffs[i] = den
	}

	return coeffs, nil
}

// subsetPolynomial expands prod(x + ys[i]) and returns its coefficients,
// lowest degree first.
func subsetPolynomial(ys []*ml.Zr) []*ml.Zr {
	coeffs := make([]*ml.Zr, 1, len(ys)+1)
	coeffs[0] = curve.NewZrFromInt(1)

	for _, y := range ys {
		next := make([]*ml.Zr, len(coeffs)+1)

		for k := range next {
			sum := curve.NewZrFromInt(0)

			if k < len(coeffs) {
				sum = sum.Plus(coeffs[k].Mul(y))
			}

			if k > 0 {
				sum = sum.Plus(coeffs[k-1])
			}

			sum.Mod(curve.GroupOrder)

			next[k] = sum
		}

		coeffs = next
	}

	return coeffs
}

func sumOfG1Products(bases []*ml.G1, scalars []*ml.Zr) *ml.G1 {
	var res *ml.G1

	for i := 0; i < len(bases); i++ {
		g := bases[i].Mul(frToRepr(scalars[i]))

		if res == nil {
			res = g
		} else {
			res.Add(g)
		}
	}

	return res
}

func sumOfG2Products(bases []*ml.G2, scalars []*ml.Zr) *ml.G2 {
	var res *ml.G2

	for i := 0; i < len(bases); i++ {
		g := bases[i].Mul(frToRepr(scalars[i]))

		if res == nil {
			res = g
		} else {
			res.Add(g)
		}
	}

	return res
}
