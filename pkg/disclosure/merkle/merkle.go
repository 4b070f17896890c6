/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package merkle implements the Merkle tree selective disclosure scheme. The
// issuer builds a binary SHA-256 tree over salted claim digests and signs the
// root with an ECDSA P-256 key. Disclosing a claim reveals its salt and an
// inclusion path to the committed root, so presentation size grows with the
// number of disclosed claims, not the credential size.
//
// The tree promotes an unpaired trailing node to the next level unchanged.
// Path shape is therefore a function of the committed leaf count and the
// claim index alone, and verifiers derive it rather than trust side bits
// carried in the witness.
package merkle

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
	seedSize = 32
	saltSize = sha256.Size
	hashSize = sha256.Size
)

// Backend implements the merkle scheme.
type Backend struct{}

// New returns a merkle backend.
func New() *Backend {
	return &Backend{}
}

// Scheme returns disclosure.Merkle.
func (b *Backend) Scheme() disclosure.Scheme {
	return disclosure.Merkle
}

// KeyPair is the issuer ECDSA P-256 signing key of the merkle scheme.
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

// Scheme returns disclosure.Merkle.
func (kp *KeyPair) Scheme() disclosure.Scheme {
	return disclosure.Merkle
}

// Public returns the verification half of the key pair.
func (kp *KeyPair) Public() disclosure.PublicKey {
	return &PublicKey{pubKeyBytes: kp.signer.MarshalPublicKey()}
}

// Bytes returns the serialized private key.
func (kp *KeyPair) Bytes() []byte {
	return kp.signer.MarshalPrivateKey()
}

// PublicKey is the issuer verification key of the merkle scheme.
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

// Scheme returns disclosure.Merkle.
func (pk *PublicKey) Scheme() disclosure.Scheme {
	return disclosure.Merkle
}

// Bytes returns the serialized public key.
func (pk *PublicKey) Bytes() []byte {
	return pk.pubKeyBytes
}

// Issue commits to the claim set as a salted Merkle root and signs it.
func (b *Backend) Issue(cs *claimset.ClaimSet, keyPair disclosure.KeyPair) (*disclosure.Credential, error) {
	kp, ok := keyPair.(*KeyPair)
	if !ok || kp == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer key pair is not a merkle key pair")
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "generate salt seed: %s", err)
	}

	levels := buildLevels(buildLeaves(seed, cs.Encodings()))
	commitment := buildCommitment(cs.Len(), levels[len(levels)-1][0])

	signature, err := kp.signer.Sign(commitment)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "sign commitment: %s", err)
	}

	return &disclosure.Credential{
		Scheme:     disclosure.Merkle,
		Commitment: commitment,
		Signature:  signature,
		Aux:        seed,
	}, nil
}

// Disclose reveals the claims at the given indices, each with its salt and
// inclusion path to the committed root.
func (b *Backend) Disclose(cred *disclosure.Credential, cs *claimset.ClaimSet,
	indices []int) (*disclosure.Presentation, error) {
	if cred == nil || cred.Scheme != disclosure.Merkle {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "credential scheme is not merkle")
	}

	if len(cred.Aux) != seedSize {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of salt seed: %d", len(cred.Aux))
	}

	if cs == nil || cs.Len() == 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "empty claim set")
	}

	levels := buildLevels(buildLeaves(cred.Aux, cs.Encodings()))

	if !bytes.Equal(buildCommitment(cs.Len(), levels[len(levels)-1][0]), cred.Commitment) {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "claim set does not match credential commitment")
	}

	claims, err := cs.Subset(indices)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "select disclosed claims: %s", err)
	}

	witness := make([]byte, 4)
	binary.BigEndian.PutUint32(witness, uint32(len(claims)))

	for i := range claims {
		witness = append(witness, deriveSalt(cred.Aux, claims[i].Index)...)

		siblings := auditPath(levels, claims[i].Index)

		sibCount := make([]byte, 4)
		binary.BigEndian.PutUint32(sibCount, uint32(len(siblings)))
		witness = append(witness, sibCount...)

		for _, sibling := range siblings {
			witness = append(witness, sibling...)
		}
	}

	return &disclosure.Presentation{
		Scheme:     disclosure.Merkle,
		Disclosed:  claims,
		Commitment: cred.Commitment,
		Witness:    witness,
		Signature:  cred.Signature,
	}, nil
}

// Verify folds every disclosed claim's inclusion path and requires all of
// them to land on the committed root, then checks the binding signature.
func (b *Backend) Verify(pres *disclosure.Presentation, pub disclosure.PublicKey) ([]claimset.Claim, error) {
	pk, ok := pub.(*PublicKey)
	if !ok || pk == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "issuer public key is not a merkle key")
	}

	if pres == nil || pres.Scheme != disclosure.Merkle {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "presentation scheme is not merkle")
	}

	if err := disclosure.ValidateDisclosed(pres.Disclosed); err != nil {
		return nil, err
	}

	treeSize, root, err := parseCommitment(pres.Commitment)
	if err != nil {
		return nil, err
	}

	paths, err := parseWitness(pres.Witness, len(pres.Disclosed))
	if err != nil {
		return nil, err
	}

	if err := signer.NewECDSAP256Verifier().Verify(pk.pubKeyBytes, pres.Commitment, pres.Signature); err != nil {
		return nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "binding signature: %s", err)
	}

	for i := range pres.Disclosed {
		claim := pres.Disclosed[i]

		if int(claim.Index) >= treeSize {
			return nil, errors.Wrapf(disclosure.ErrMalformedInput, "claim index out of range: %d", claim.Index)
		}

		leaf := hashLeaf(paths[i].salt, claimset.EncodeClaim(claim))

		computed, err := foldPath(leaf, claim.Index, treeSize, paths[i].siblings)
		if err != nil {
			return nil, errors.Wrapf(disclosure.ErrMalformedInput, "claim index %d: %s", claim.Index, err)
		}

		if !bytes.Equal(computed, root) {
			return nil, errors.Wrapf(disclosure.ErrProofInconsistency,
				"inclusion path mismatch at claim index %d", claim.Index)
		}
	}

	return pres.Disclosed, nil
}

func buildLeaves(seed []byte, encodings [][]byte) [][]byte {
	leaves := make([][]byte, len(encodings))

	for i, encoding := range encodings {
		leaves[i] = hashLeaf(deriveSalt(seed, uint32(i)), encoding)
	}

	return leaves
}

// buildLevels returns the tree bottom-up: levels[0] holds the leaves, the
// last level holds the root alone. An unpaired trailing node is promoted.
func buildLevels(leaves [][]byte) [][][]byte {
	levels := [][][]byte{leaves}

	for level := leaves; len(level) > 1; {
		next := make([][]byte, 0, (len(level)+1)/2)

		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashInterior(level[i], level[i+1]))
		}

		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}

		levels = append(levels, next)
		level = next
	}

	return levels
}

func auditPath(levels [][][]byte, index uint32) [][]byte {
	var siblings [][]byte

	pos := int(index)

	for _, level := range levels[:len(levels)-1] {
		switch {
		case pos%2 == 0 && pos+1 == len(level):
			// promoted, no sibling at this level
		case pos%2 == 0:
			siblings = append(siblings, level[pos+1])
		default:
			siblings = append(siblings, level[pos-1])
		}

		pos /= 2
	}

	return siblings
}

// foldPath recomputes the root from a leaf and its sibling hashes. The walk
// shape is derived from the tree size, so the siblings must match it exactly.
func foldPath(leaf []byte, index uint32, treeSize int, siblings [][]byte) ([]byte, error) {
	node := leaf
	pos := int(index)
	next := 0

	for width := treeSize; width > 1; width = (width + 1) / 2 {
		switch {
		case pos%2 == 0 && pos+1 == width:
			// promoted, no sibling at this level
		case pos%2 == 0:
			if next == len(siblings) {
				return nil, errors.New("inclusion path too short")
			}

			node = hashInterior(node, siblings[next])
			next++
		default:
			if next == len(siblings) {
				return nil, errors.New("inclusion path too short")
			}

			node = hashInterior(siblings[next], node)
			next++
		}

		pos /= 2
	}

	if next != len(siblings) {
		return nil, errors.New("inclusion path too long")
	}

	return node, nil
}

func deriveSalt(seed []byte, index uint32) []byte {
	indexBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(indexBytes, index)

	mac := hmac.New(sha256.New, seed)
	mac.Write(indexBytes)

	return mac.Sum(nil)
}

// Leaf and interior hashes are domain separated by a one-byte prefix, so a
// leaf can never be presented as an interior node or vice versa.
const (
	leafPrefix     = 0x00
	interiorPrefix = 0x01
)

func hashLeaf(salt, encoding []byte) []byte {
	digest := sha256.New()
	digest.Write([]byte{leafPrefix})
	digest.Write(salt)
	digest.Write(encoding)

	return digest.Sum(nil)
}

func hashInterior(left, right []byte) []byte {
	digest := sha256.New()
	digest.Write([]byte{interiorPrefix})
	digest.Write(left)
	digest.Write(right)

	return digest.Sum(nil)
}

func buildCommitment(treeSize int, root []byte) []byte {
	commitment := make([]byte, 4, 4+hashSize)
	binary.BigEndian.PutUint32(commitment, uint32(treeSize))

	return append(commitment, root...)
}

func parseCommitment(commitment []byte) (int, []byte, error) {
	if len(commitment) != 4+hashSize {
		return 0, nil, errors.Wrapf(disclosure.ErrMalformedInput, "invalid size of commitment: %d", len(commitment))
	}

	treeSize := int(binary.BigEndian.Uint32(commitment))

	if treeSize == 0 {
		return 0, nil, errors.Wrap(disclosure.ErrMalformedInput, "empty tree commitment")
	}

	return treeSize, commitment[4:], nil
}

type inclusionPath struct {
	salt     []byte
	siblings [][]byte
}

func parseWitness(witness []byte, disclosed int) ([]inclusionPath, error) {
	if len(witness) < 4 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated witness")
	}

	count := int(binary.BigEndian.Uint32(witness))

	if count != disclosed {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"witness carries %d paths for %d disclosed claims", count, disclosed)
	}

	paths := make([]inclusionPath, count)
	offset := 4

	for i := 0; i < count; i++ {
		if offset+saltSize+4 > len(witness) {
			return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated witness")
		}

		paths[i].salt = witness[offset : offset+saltSize]
		offset += saltSize

		sibCount := int(binary.BigEndian.Uint32(witness[offset:]))
		offset += 4

		if sibCount < 0 || offset+sibCount*hashSize > len(witness) {
			return nil, errors.Wrap(disclosure.ErrMalformedInput, "truncated witness")
		}

		paths[i].siblings = make([][]byte, sibCount)

		for j := 0; j < sibCount; j++ {
			paths[i].siblings[j] = witness[offset : offset+hashSize]
			offset += hashSize
		}
	}

	if offset != len(witness) {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "trailing bytes in witness")
	}

	return paths, nil
}
