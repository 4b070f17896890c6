/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package csd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

func TestGenerateKeyPair(t *testing.T) {
	keyPair, err := GenerateKeyPair(8)
	require.NoError(t, err)
	require.Equal(t, disclosure.CSD, keyPair.Scheme())
	require.Equal(t, 8, keyPair.MaxClaims())

	pub := keyPair.Public()
	require.Equal(t, disclosure.CSD, pub.Scheme())

	t.Run("key pair bytes round trip", func(t *testing.T) {
		parsed, err := ParseKeyPair(keyPair.Bytes())
		require.NoError(t, err)
		require.Equal(t, keyPair.MaxClaims(), parsed.MaxClaims())
		require.Equal(t, pub.Bytes(), parsed.Public().Bytes())
	})

	t.Run("public key bytes round trip", func(t *testing.T) {
		parsed, err := ParsePublicKey(pub.Bytes())
		require.NoError(t, err)
		require.Equal(t, pub.Bytes(), parsed.Bytes())
		require.Equal(t, 8, parsed.MaxClaims())
	})

	t.Run("invalid capacity", func(t *testing.T) {
		_, err := GenerateKeyPair(0)
		require.EqualError(t, err, "generate accumulator keys: invalid max attributes count: malformed input")
		require.ErrorIs(t, err, disclosure.ErrMalformedInput)
	})

	t.Run("truncated key pair bytes", func(t *testing.T) {
		_, err := ParseKeyPair([]byte{0x00})
		require.EqualError(t, err, "truncated key pair: malformed input")

		_, err = ParseKeyPair(keyPair.Bytes()[:50])
		require.ErrorIs(t, err, disclosure.ErrMalformedInput)
	})

	t.Run("corrupt accumulator public key", func(t *testing.T) {
		raw := append([]byte{}, keyPair.Bytes()...)
		raw[10] ^= 0x01

		_, err := ParseKeyPair(raw)
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
	})

	t.Run("truncated public key bytes", func(t *testing.T) {
		_, err := ParsePublicKey([]byte{0x00})
		require.EqualError(t, err, "truncated public key: malformed input")

		_, err = ParsePublicKey(pub.Bytes()[:40])
		require.ErrorIs(t, err, disclosure.ErrMalformedInput)
	})
}

func TestBackend_IssueDiscloseVerify(t *testing.T) {
	backend := New()
	require.Equal(t, disclosure.CSD, backend.Scheme())

	keyPair, err := GenerateKeyPair(16)
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)
	require.Equal(t, disclosure.CSD, cred.Scheme)
	require.Len(t, cred.Commitment, 48)
	require.Len(t, cred.Aux, 4+cs.Len()*witnessSize)

	pres, err := backend.Disclose(cred, cs, []int{3, 1})
	require.NoError(t, err)
	require.Len(t, pres.Disclosed, 2)
	require.Len(t, pres.Witness, witnessSize)

	claims, err := backend.Verify(pres, keyPair.Public())
	require.NoError(t, err)
	require.Equal(t, pres.Disclosed, claims)

	t.Run("witness size does not grow with disclosed count", func(t *testing.T) {
		one, err := backend.Disclose(cred, cs, []int{0})
		require.NoError(t, err)

		four, err := backend.Disclose(cred, cs, []int{0, 1, 2, 3})
		require.NoError(t, err)

		require.Len(t, one.Witness, witnessSize)
		require.Len(t, four.Witness, witnessSize)

		_, err = backend.Verify(one, keyPair.Public())
		require.NoError(t, err)

		_, err = backend.Verify(four, keyPair.Public())
		require.NoError(t, err)
	})

	t.Run("empty disclosure", func(t *testing.T) {
		pres, err := backend.Disclose(cred, cs, nil)
		require.NoError(t, err)
		require.Empty(t, pres.Disclosed)
		require.Equal(t, cred.Commitment, pres.Witness)

		claims, err := backend.Verify(pres, keyPair.Public())
		require.NoError(t, err)
		require.Empty(t, claims)
	})

	t.Run("full disclosure", func(t *testing.T) {
		pres, err := backend.Disclose(cred, cs, []int{0, 1, 2, 3, 4})
		require.NoError(t, err)

		claims, err := backend.Verify(pres, keyPair.Public())
		require.NoError(t, err)
		require.Equal(t, cs.Claims(), claims)
	})

	t.Run("presentation round trips through binary encoding", func(t *testing.T) {
		encoded, err := pres.MarshalBinary()
		require.NoError(t, err)

		parsed, err := disclosure.ParsePresentation(encoded)
		require.NoError(t, err)

		claims, err := backend.Verify(parsed, keyPair.Public())
		require.NoError(t, err)
		require.Equal(t, pres.Disclosed, claims)
	})
}

func TestBackend_IssueFailures(t *testing.T) {
	backend := New()

	keyPair, err := GenerateKeyPair(2)
	require.NoError(t, err)

	t.Run("nil claim set", func(t *testing.T) {
		_, err := backend.Issue(nil, keyPair)
		require.EqualError(t, err, "empty claim set: malformed input")
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		_, err := backend.Issue(newTestClaimSet(t), keyPair)
		require.EqualError(t, err, "claim set size 5 exceeds key capacity 2: malformed input")
		require.ErrorIs(t, err, disclosure.ErrMalformedInput)
	})
}

func TestBackend_DiscloseFailures(t *testing.T) {
	backend := New()

	keyPair, err := GenerateKeyPair(8)
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)

	t.Run("wrong scheme", func(t *testing.T) {
		wrong := *cred
		wrong.Scheme = disclosure.BBS

		_, err := backend.Disclose(&wrong, cs, []int{0})
		require.EqualError(t, err, "credential scheme is not csd: malformed input")
	})

	t.Run("witness count mismatch", func(t *testing.T) {
		wrong := *cred
		wrong.Aux = append([]byte{}, cred.Aux...)
		wrong.Aux[3] = 0x01

		_, err := backend.Disclose(&wrong, cs, []int{0})
		require.EqualError(t, err, "witness material carries 1 witnesses for 5 claims: malformed input")
	})

	t.Run("truncated witness material", func(t *testing.T) {
		wrong := *cred
		wrong.Aux = cred.Aux[:len(cred.Aux)-1]

		_, err := backend.Disclose(&wrong, cs, []int{0})
		require.ErrorIs(t, err, disclosure.ErrMalformedInput)
	})

	t.Run("duplicate index", func(t *testing.T) {
		_, err := backend.Disclose(cred, cs, []int{2, 2})
		require.EqualError(t, err, "select disclosed claims: duplicate claim index: 2: malformed input")
	})
}

func TestBackend_VerifyFailures(t *testing.T) {
	backend := New()

	keyPair, err := GenerateKeyPair(8)
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)

	pres, err := backend.Disclose(cred, cs, []int{0, 2})
	require.NoError(t, err)

	pub := keyPair.Public()

	t.Run("tampered claim value", func(t *testing.T) {
		wrong := *pres
		wrong.Disclosed = append([]claimset.Claim{}, pres.Disclosed...)
		wrong.Disclosed[1].Value = []byte("attacker@example.com")

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "accumulator relation does not hold: proof inconsistency")
		require.ErrorIs(t, err, disclosure.ErrProofInconsistency)
	})

	t.Run("claim presented under a different index", func(t *testing.T) {
		wrong := *pres
		wrong.Disclosed = append([]claimset.Claim{}, pres.Disclosed...)
		wrong.Disclosed[1].Index = 3

		_, err := backend.Verify(&wrong, pub)
		require.ErrorIs(t, err, disclosure.ErrProofInconsistency)
	})

	t.Run("witness for a different subset", func(t *testing.T) {
		other, err := backend.Disclose(cred, cs, []int{1})
		require.NoError(t, err)

		wrong := *pres
		wrong.Witness = other.Witness

		_, err = backend.Verify(&wrong, pub)
		require.ErrorIs(t, err, disclosure.ErrProofInconsistency)
	})

	t.Run("corrupt witness point", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = make([]byte, witnessSize)

		_, err := backend.Verify(&wrong, pub)
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
	})

	t.Run("tampered signature", func(t *testing.T) {
		wrong := *pres
		wrong.Signature = append([]byte{}, pres.Signature...)
		wrong.Signature[5] ^= 0x01

		_, err := backend.Verify(&wrong, pub)
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
		require.Contains(t, err.Error(), "binding signature")
	})

	t.Run("cross-issuer key", func(t *testing.T) {
		otherKeyPair, err := GenerateKeyPair(8)
		require.NoError(t, err)

		_, err = backend.Verify(pres, otherKeyPair.Public())
		require.Error(t, err)
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
	})

	t.Run("capacity exceeded", func(t *testing.T) {
		smallKeyPair, err := GenerateKeyPair(1)
		require.NoError(t, err)

		_, err = backend.Verify(pres, smallKeyPair.Public())
		require.EqualError(t, err, "2 disclosed claims exceed key capacity 1: malformed input")
	})
}

func newTestClaimSet(t *testing.T) *claimset.ClaimSet {
	t.Helper()

	cs, err := claimset.New([]claimset.Pair{
		{Key: []byte("given_name"), Value: []byte("Jayden")},
		{Key: []byte("family_name"), Value: []byte("Doe")},
		{Key: []byte("email"), Value: []byte("jayden.doe@example.com")},
		{Key: []byte("age"), Value: []byte("21")},
		{Key: []byte("country"), Value: []byte("NZ")},
	})
	require.NoError(t, err)

	return cs
}
