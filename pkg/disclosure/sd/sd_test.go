/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

func TestGenerateKeyPair(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Equal(t, disclosure.SD, keyPair.Scheme())

	pub := keyPair.Public()
	require.Equal(t, disclosure.SD, pub.Scheme())
	require.Len(t, pub.Bytes(), 33)

	parsed, err := ParseKeyPair(keyPair.Bytes())
	require.NoError(t, err)
	require.Equal(t, pub.Bytes(), parsed.Public().Bytes())

	t.Run("invalid private key bytes", func(t *testing.T) {
		_, err := ParseKeyPair([]byte("corrupt"))
		require.ErrorIs(t, err, disclosure.ErrMalformedInput)
	})
}

func TestParsePublicKey(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	pub, err := ParsePublicKey(keyPair.Public().Bytes())
	require.NoError(t, err)
	require.Equal(t, keyPair.Public().Bytes(), pub.Bytes())

	_, err = ParsePublicKey([]byte("corrupt"))
	require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
}

func TestBackend_IssueDiscloseVerify(t *testing.T) {
	backend := New()
	require.Equal(t, disclosure.SD, backend.Scheme())

	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)
	require.Equal(t, disclosure.SD, cred.Scheme)
	require.Len(t, cred.Commitment, 4+cs.Len()*digestSize)
	require.Len(t, cred.Aux, seedSize)

	pres, err := backend.Disclose(cred, cs, []int{2, 0})
	require.NoError(t, err)
	require.Equal(t, disclosure.SD, pres.Scheme)
	require.Len(t, pres.Disclosed, 2)
	require.Equal(t, uint32(0), pres.Disclosed[0].Index)
	require.Equal(t, uint32(2), pres.Disclosed[1].Index)
	require.Len(t, pres.Witness, 4+2*saltSize)
	require.Equal(t, cred.Commitment, pres.Commitment)
	require.Equal(t, cred.Signature, pres.Signature)

	claims, err := backend.Verify(pres, keyPair.Public())
	require.NoError(t, err)
	require.Equal(t, pres.Disclosed, claims)
	require.Equal(t, []byte("email"), claims[1].Key)
	require.Equal(t, []byte("jayden.doe@example.com"), claims[1].Value)

	t.Run("empty disclosure", func(t *testing.T) {
		pres, err := backend.Disclose(cred, cs, nil)
		require.NoError(t, err)
		require.Empty(t, pres.Disclosed)

		claims, err := backend.Verify(pres, keyPair.Public())
		require.NoError(t, err)
		require.Empty(t, claims)
	})

	t.Run("full disclosure", func(t *testing.T) {
		pres, err := backend.Disclose(cred, cs, []int{0, 1, 2, 3})
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

	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	t.Run("foreign key pair", func(t *testing.T) {
		_, err := backend.Issue(newTestClaimSet(t), &foreignKeyPair{})
		require.EqualError(t, err, "issuer key pair is not an sd key pair: malformed input")
	})

	t.Run("nil claim set", func(t *testing.T) {
		_, err := backend.Issue(nil, keyPair)
		require.EqualError(t, err, "empty claim set: malformed input")
		require.ErrorIs(t, err, disclosure.ErrMalformedInput)
	})
}

func TestBackend_DiscloseFailures(t *testing.T) {
	backend := New()

	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)

	t.Run("wrong scheme", func(t *testing.T) {
		wrong := *cred
		wrong.Scheme = disclosure.Merkle

		_, err := backend.Disclose(&wrong, cs, []int{0})
		require.EqualError(t, err, "credential scheme is not sd: malformed input")
	})

	t.Run("invalid seed size", func(t *testing.T) {
		wrong := *cred
		wrong.Aux = cred.Aux[:16]

		_, err := backend.Disclose(&wrong, cs, []int{0})
		require.EqualError(t, err, "invalid size of salt seed: 16: malformed input")
	})

	t.Run("claim set mismatch", func(t *testing.T) {
		other, err := claimset.New([]claimset.Pair{{Key: []byte("other"), Value: []byte("claims")}})
		require.NoError(t, err)

		_, err = backend.Disclose(cred, other, []int{0})
		require.EqualError(t, err, "claim set does not match credential commitment: malformed input")
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := backend.Disclose(cred, cs, []int{0, 4})
		require.EqualError(t, err, "select disclosed claims: claim index out of range: 4: malformed input")
	})

	t.Run("duplicate index", func(t *testing.T) {
		_, err := backend.Disclose(cred, cs, []int{1, 1})
		require.EqualError(t, err, "select disclosed claims: duplicate claim index: 1: malformed input")
	})
}

func TestBackend_VerifyFailures(t *testing.T) {
	backend := New()

	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)

	pres, err := backend.Disclose(cred, cs, []int{1, 3})
	require.NoError(t, err)

	pub := keyPair.Public()

	t.Run("foreign public key", func(t *testing.T) {
		_, err := backend.Verify(pres, &foreignPublicKey{})
		require.EqualError(t, err, "issuer public key is not an sd key: malformed input")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		wrong := *pres
		wrong.Scheme = disclosure.CSD

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "presentation scheme is not sd: malformed input")
	})

	t.Run("tampered claim value", func(t *testing.T) {
		wrong := *pres
		wrong.Disclosed = append([]claimset.Claim{}, pres.Disclosed...)
		wrong.Disclosed[0].Value = []byte("Smith")

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "digest mismatch at claim index 1: primitive failure")
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
	})

	t.Run("claim presented under a different index", func(t *testing.T) {
		wrong := *pres
		wrong.Disclosed = append([]claimset.Claim{}, pres.Disclosed...)
		wrong.Disclosed[1].Index = 2

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "digest mismatch at claim index 2: primitive failure")
	})

	t.Run("tampered signature", func(t *testing.T) {
		wrong := *pres
		wrong.Signature = append([]byte{}, pres.Signature...)
		wrong.Signature[10] ^= 0x01

		_, err := backend.Verify(&wrong, pub)
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
		require.Contains(t, err.Error(), "binding signature")
	})

	t.Run("tampered commitment", func(t *testing.T) {
		wrong := *pres
		wrong.Commitment = append([]byte{}, pres.Commitment...)
		wrong.Commitment[7] ^= 0x01

		_, err := backend.Verify(&wrong, pub)
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
	})

	t.Run("truncated commitment", func(t *testing.T) {
		wrong := *pres
		wrong.Commitment = pres.Commitment[:len(pres.Commitment)-1]

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "invalid size of commitment: 131: malformed input")
	})

	t.Run("witness salt count mismatch", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = append([]byte{}, pres.Witness...)
		wrong.Witness[3] = 0x01

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "witness carries 1 salts for 2 disclosed claims: malformed input")
	})

	t.Run("truncated witness", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = pres.Witness[:4+saltSize]

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "invalid size of witness: 36: malformed input")
	})

	t.Run("claim index beyond committed count", func(t *testing.T) {
		wrong := *pres
		wrong.Disclosed = append([]claimset.Claim{}, pres.Disclosed...)
		wrong.Disclosed[1].Index = 9

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "claim index out of range: 9: malformed input")
	})

	t.Run("cross-issuer key", func(t *testing.T) {
		otherKeyPair, err := GenerateKeyPair()
		require.NoError(t, err)

		_, err = backend.Verify(pres, otherKeyPair.Public())
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
		require.Contains(t, err.Error(), "binding signature")
	})
}

func TestDeriveSalt(t *testing.T) {
	seed := []byte("00000000000000000000000000000000")

	require.Equal(t, deriveSalt(seed, 3), deriveSalt(seed, 3))
	require.NotEqual(t, deriveSalt(seed, 3), deriveSalt(seed, 4))
	require.Len(t, deriveSalt(seed, 0), saltSize)
}

func newTestClaimSet(t *testing.T) *claimset.ClaimSet {
	t.Helper()

	cs, err := claimset.New([]claimset.Pair{
		{Key: []byte("given_name"), Value: []byte("Jayden")},
		{Key: []byte("family_name"), Value: []byte("Doe")},
		{Key: []byte("email"), Value: []byte("jayden.doe@example.com")},
		{Key: []byte("age"), Value: []byte("21")},
	})
	require.NoError(t, err)

	return cs
}

type foreignKeyPair struct{}

func (f *foreignKeyPair) Scheme() disclosure.Scheme {
	return disclosure.BBS
}

func (f *foreignKeyPair) Public() disclosure.PublicKey {
	return &foreignPublicKey{}
}

type foreignPublicKey struct{}

func (f *foreignPublicKey) Scheme() disclosure.Scheme {
	return disclosure.BBS
}

func (f *foreignPublicKey) Bytes() []byte {
	return nil
}
