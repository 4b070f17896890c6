/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package merkle

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

func TestTreeShape(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 5, 6, 7, 8, 33} {
		t.Run(fmt.Sprintf("%d leaves", size), func(t *testing.T) {
			leaves := make([][]byte, size)
			for i := range leaves {
				leaves[i] = hashLeaf([]byte{byte(i)}, []byte("leaf"))
			}

			levels := buildLevels(leaves)
			require.Len(t, levels[len(levels)-1], 1)

			root := levels[len(levels)-1][0]

			for i := 0; i < size; i++ {
				siblings := auditPath(levels, uint32(i))

				computed, err := foldPath(leaves[i], uint32(i), size, siblings)
				require.NoError(t, err)
				require.Equal(t, root, computed, "leaf %d", i)
			}
		})
	}

	t.Run("unpaired node is promoted", func(t *testing.T) {
		leaves := [][]byte{
			hashLeaf([]byte{0}, []byte("leaf")),
			hashLeaf([]byte{1}, []byte("leaf")),
			hashLeaf([]byte{2}, []byte("leaf")),
		}

		levels := buildLevels(leaves)
		require.Len(t, levels, 3)
		require.Equal(t, leaves[2], levels[1][1])
		require.Equal(t, hashInterior(hashInterior(leaves[0], leaves[1]), leaves[2]), levels[2][0])
	})

	t.Run("single leaf is the root", func(t *testing.T) {
		leaf := hashLeaf([]byte{0}, []byte("leaf"))

		levels := buildLevels([][]byte{leaf})
		require.Len(t, levels, 1)
		require.Empty(t, auditPath(levels, 0))

		computed, err := foldPath(leaf, 0, 1, nil)
		require.NoError(t, err)
		require.Equal(t, leaf, computed)
	})

	t.Run("leaf and interior hashes are domain separated", func(t *testing.T) {
		left := hashLeaf([]byte{0}, []byte("leaf"))
		right := hashLeaf([]byte{1}, []byte("leaf"))

		require.NotEqual(t, hashInterior(left, right), hashLeaf(left, right))
	})
}

func TestGenerateKeyPair(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Equal(t, disclosure.Merkle, keyPair.Scheme())
	require.Equal(t, disclosure.Merkle, keyPair.Public().Scheme())

	parsed, err := ParseKeyPair(keyPair.Bytes())
	require.NoError(t, err)
	require.Equal(t, keyPair.Public().Bytes(), parsed.Public().Bytes())

	pub, err := ParsePublicKey(keyPair.Public().Bytes())
	require.NoError(t, err)
	require.Equal(t, keyPair.Public().Bytes(), pub.Bytes())

	_, err = ParsePublicKey([]byte("corrupt"))
	require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
}

func TestBackend_IssueDiscloseVerify(t *testing.T) {
	backend := New()
	require.Equal(t, disclosure.Merkle, backend.Scheme())

	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)
	require.Equal(t, disclosure.Merkle, cred.Scheme)
	require.Len(t, cred.Commitment, 4+hashSize)
	require.Len(t, cred.Aux, seedSize)

	pres, err := backend.Disclose(cred, cs, []int{4, 1})
	require.NoError(t, err)
	require.Len(t, pres.Disclosed, 2)
	require.Equal(t, uint32(1), pres.Disclosed[0].Index)
	require.Equal(t, uint32(4), pres.Disclosed[1].Index)

	claims, err := backend.Verify(pres, keyPair.Public())
	require.NoError(t, err)
	require.Equal(t, pres.Disclosed, claims)

	t.Run("empty disclosure", func(t *testing.T) {
		pres, err := backend.Disclose(cred, cs, nil)
		require.NoError(t, err)
		require.Empty(t, pres.Disclosed)
		require.Len(t, pres.Witness, 4)

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

	t.Run("single claim credential", func(t *testing.T) {
		single, err := claimset.New([]claimset.Pair{{Key: []byte("degree"), Value: []byte("BSc")}})
		require.NoError(t, err)

		cred, err := backend.Issue(single, keyPair)
		require.NoError(t, err)

		pres, err := backend.Disclose(cred, single, []int{0})
		require.NoError(t, err)

		claims, err := backend.Verify(pres, keyPair.Public())
		require.NoError(t, err)
		require.Len(t, claims, 1)
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

func TestBackend_DiscloseFailures(t *testing.T) {
	backend := New()

	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	cs := newTestClaimSet(t)

	cred, err := backend.Issue(cs, keyPair)
	require.NoError(t, err)

	t.Run("wrong scheme", func(t *testing.T) {
		wrong := *cred
		wrong.Scheme = disclosure.SD

		_, err := backend.Disclose(&wrong, cs, []int{0})
		require.EqualError(t, err, "credential scheme is not merkle: malformed input")
	})

	t.Run("claim set mismatch", func(t *testing.T) {
		other, err := claimset.New([]claimset.Pair{{Key: []byte("other"), Value: []byte("claims")}})
		require.NoError(t, err)

		_, err = backend.Disclose(cred, other, []int{0})
		require.EqualError(t, err, "claim set does not match credential commitment: malformed input")
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := backend.Disclose(cred, cs, []int{5})
		require.EqualError(t, err, "select disclosed claims: claim index out of range: 5: malformed input")
	})
}

func TestBackend_VerifyFailures(t *testing.T) {
	backend := New()

	keyPair, err := GenerateKeyPair()
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
		require.EqualError(t, err, "inclusion path mismatch at claim index 2: proof inconsistency")
		require.ErrorIs(t, err, disclosure.ErrProofInconsistency)
	})

	t.Run("tampered sibling hash", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = append([]byte{}, pres.Witness...)
		wrong.Witness[4+saltSize+4] ^= 0x01

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "inclusion path mismatch at claim index 0: proof inconsistency")
	})

	t.Run("tampered salt", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = append([]byte{}, pres.Witness...)
		wrong.Witness[4] ^= 0x01

		_, err := backend.Verify(&wrong, pub)
		require.ErrorIs(t, err, disclosure.ErrProofInconsistency)
	})

	t.Run("tampered signature", func(t *testing.T) {
		wrong := *pres
		wrong.Signature = append([]byte{}, pres.Signature...)
		wrong.Signature[10] ^= 0x01

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "binding signature: ecdsa: invalid signature: primitive failure")
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
	})

	t.Run("inclusion path too short", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = append([]byte{}, pres.Witness[:len(pres.Witness)-hashSize]...)
		binary.BigEndian.PutUint32(wrong.Witness[4+saltSize+4+3*hashSize+saltSize:], 2)

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "claim index 2: inclusion path too short: malformed input")
	})

	t.Run("cross-issuer key", func(t *testing.T) {
		otherKeyPair, err := GenerateKeyPair()
		require.NoError(t, err)

		_, err = backend.Verify(pres, otherKeyPair.Public())
		require.ErrorIs(t, err, disclosure.ErrPrimitiveFailure)
		require.Contains(t, err.Error(), "binding signature")
	})

	t.Run("invalid commitment size", func(t *testing.T) {
		wrong := *pres
		wrong.Commitment = pres.Commitment[:10]

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "invalid size of commitment: 10: malformed input")
	})

	t.Run("empty tree commitment", func(t *testing.T) {
		wrong := *pres
		wrong.Commitment = append([]byte{}, pres.Commitment...)
		binary.BigEndian.PutUint32(wrong.Commitment, 0)

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "empty tree commitment: malformed input")
	})

	t.Run("path count mismatch", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = append([]byte{}, pres.Witness...)
		binary.BigEndian.PutUint32(wrong.Witness, 1)

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "witness carries 1 paths for 2 disclosed claims: malformed input")
	})

	t.Run("trailing witness bytes", func(t *testing.T) {
		wrong := *pres
		wrong.Witness = append(append([]byte{}, pres.Witness...), 0x00)

		_, err := backend.Verify(&wrong, pub)
		require.EqualError(t, err, "trailing bytes in witness: malformed input")
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
