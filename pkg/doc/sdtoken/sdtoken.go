/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdtoken frames disclosure artifacts as compact JOSE tokens of the
// form base64url(header).base64url(payload).base64url(signature). The payload
// is the artifact's binary encoding; issuance metadata rides in the protected
// header.
//
// Credential tokens are always unsecured (empty signature segment): integrity
// comes from the issuer binding inside the artifact itself. Presentation
// tokens are unsecured by default and carry an ES256 holder signature when
// built with WithHolderBinding, which binds the presentation to the holder's
// did:key.
package sdtoken

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-sdvc-go/pkg/crypto/signer"
	"github.com/hyperledger/aries-sdvc-go/pkg/disclosure"
	"github.com/hyperledger/aries-sdvc-go/pkg/vdr/fingerprint"
)

// Token algorithm names, one per disclosure scheme. Holder bound presentation
// tokens use ES256 as alg and move the scheme algorithm to the cty header.
const (
	AlgCSD    = "CSD-SD"
	AlgSD     = "HASH-SD"
	AlgMerkle = "MERKLE-SD"
	AlgBBS    = "BBS-SD"
	AlgES256  = "ES256"
)

// Token typ header values.
const (
	TypeCredential   = "sdvc+credential"
	TypePresentation = "sdvc+presentation"
)

// Header is the protected header of a token.
type Header struct {
	Algorithm   string `json:"alg"`
	Type        string `json:"typ"`
	ContentType string `json:"cty,omitempty"`
	Issuer      string `json:"iss,omitempty"`
	KeyID       string `json:"kid,omitempty"`
	ID          string `json:"jti,omitempty"`
}

// Algorithm returns the token algorithm name of a disclosure scheme.
func Algorithm(scheme disclosure.Scheme) (string, error) {
	switch scheme {
	case disclosure.CSD:
		return AlgCSD, nil
	case disclosure.SD:
		return AlgSD, nil
	case disclosure.Merkle:
		return AlgMerkle, nil
	case disclosure.BBS:
		return AlgBBS, nil
	default:
		return "", errors.Wrapf(disclosure.ErrMalformedInput, "no token algorithm for scheme %q", scheme)
	}
}

// SchemeOf resolves the disclosure scheme named by a token algorithm.
func SchemeOf(alg string) (disclosure.Scheme, error) {
	switch alg {
	case AlgCSD:
		return disclosure.CSD, nil
	case AlgSD:
		return disclosure.SD, nil
	case AlgMerkle:
		return disclosure.Merkle, nil
	case AlgBBS:
		return disclosure.BBS, nil
	default:
		return 0, errors.Wrapf(disclosure.ErrMalformedInput, "unsupported token algorithm %q", alg)
	}
}

// Scheme returns the disclosure scheme of the token. For holder bound tokens
// the scheme algorithm rides in the cty header.
func (h *Header) Scheme() (disclosure.Scheme, error) {
	alg := h.Algorithm
	if alg == AlgES256 {
		alg = h.ContentType
	}

	return SchemeOf(alg)
}

// IssuerKey returns the raw issuer public key embedded in the token's iss
// did:key DID. The key multicodec must agree with the token's scheme.
func (h *Header) IssuerKey() ([]byte, error) {
	scheme, err := h.Scheme()
	if err != nil {
		return nil, err
	}

	if h.Issuer == "" {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "token carries no issuer")
	}

	methodID, err := fingerprint.MethodIDFromDIDKey(h.Issuer)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse issuer DID: %s", err)
	}

	keyBytes, code, err := fingerprint.PubKeyFromFingerprint(methodID)
	if err != nil {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse issuer key: %s", err)
	}

	expected, err := schemeMultiCodec(scheme)
	if err != nil {
		return nil, err
	}

	if code != expected {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"issuer key multicodec %#x does not match scheme %q", code, scheme)
	}

	return keyBytes, nil
}

// IssuerDID builds the did:key DID identifying an issuer public key.
func IssuerDID(pub disclosure.PublicKey) (string, error) {
	code, err := schemeMultiCodec(pub.Scheme())
	if err != nil {
		return "", err
	}

	didKey, _ := fingerprint.CreateDIDKey(code, pub.Bytes())

	return didKey, nil
}

func schemeMultiCodec(scheme disclosure.Scheme) (uint64, error) {
	switch scheme {
	case disclosure.CSD:
		return fingerprint.CSDPubKeyMultiCodec, nil
	case disclosure.SD, disclosure.Merkle:
		return fingerprint.P256PubKeyMultiCodec, nil
	case disclosure.BBS:
		return fingerprint.BLS12381g2PubKeyMultiCodec, nil
	default:
		return 0, errors.Wrapf(disclosure.ErrMalformedInput, "no key multicodec for scheme %q", scheme)
	}
}

type newOpts struct {
	id     string
	binder *signer.ECDSASigner
}

// NewOpt is the option for token creation.
type NewOpt func(opts *newOpts)

// WithID sets the jti header instead of a generated UUID.
func WithID(id string) NewOpt {
	return func(opts *newOpts) {
		opts.id = id
	}
}

// WithHolderBinding signs the presentation token with the holder key and
// names the holder's did:key in the kid header.
func WithHolderBinding(holderSigner *signer.ECDSASigner) NewOpt {
	return func(opts *newOpts) {
		opts.binder = holderSigner
	}
}

// NewCredentialToken frames an issued credential as an unsecured token.
func NewCredentialToken(cred *disclosure.Credential, issuerPub disclosure.PublicKey,
	opts ...NewOpt) (string, error) {
	if cred == nil {
		return "", errors.Wrap(disclosure.ErrMalformedInput, "nil credential")
	}

	nOpts := applyOpts(opts)

	if nOpts.binder != nil {
		return "", errors.Wrap(disclosure.ErrMalformedInput, "credential tokens are not holder bound")
	}

	header, err := newHeader(TypeCredential, cred.Scheme, issuerPub, nOpts)
	if err != nil {
		return "", err
	}

	payload, err := cred.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "marshal credential")
	}

	return serializeUnsecured(header, payload)
}

// NewPresentationToken frames a derived presentation as a token. Without
// holder binding the token is unsecured.
func NewPresentationToken(pres *disclosure.Presentation, issuerPub disclosure.PublicKey,
	opts ...NewOpt) (string, error) {
	if pres == nil {
		return "", errors.Wrap(disclosure.ErrMalformedInput, "nil presentation")
	}

	nOpts := applyOpts(opts)

	header, err := newHeader(TypePresentation, pres.Scheme, issuerPub, nOpts)
	if err != nil {
		return "", err
	}

	payload, err := pres.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "marshal presentation")
	}

	if nOpts.binder == nil {
		return serializeUnsecured(header, payload)
	}

	return serializeHolderBound(header, payload, nOpts.binder)
}

// CredentialToken is a parsed credential token.
type CredentialToken struct {
	Header     *Header
	Credential *disclosure.Credential
}

// ParseCredentialToken parses an unsecured credential token.
func ParseCredentialToken(token string) (*CredentialToken, error) {
	header, payload, sig, err := splitToken(token)
	if err != nil {
		return nil, err
	}

	if header.Type != TypeCredential {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "unexpected token type %q", header.Type)
	}

	if len(sig) != 0 {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "credential token must be unsecured")
	}

	cred, err := disclosure.ParseCredential(payload)
	if err != nil {
		return nil, errors.Wrap(err, "parse credential payload")
	}

	alg, err := Algorithm(cred.Scheme)
	if err != nil {
		return nil, err
	}

	if header.Algorithm != alg {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"token algorithm %q does not match credential scheme %q", header.Algorithm, cred.Scheme)
	}

	return &CredentialToken{Header: header, Credential: cred}, nil
}

// PresentationToken is a parsed presentation token. HolderKey carries the
// compressed holder public key when the token is holder bound.
type PresentationToken struct {
	Header       *Header
	Presentation *disclosure.Presentation
	HolderKey    []byte
}

// ParsePresentationToken parses a presentation token, checking the holder
// signature when the token is holder bound. Cryptographic verification of
// the presentation itself stays with the disclosure registry.
func ParsePresentationToken(token string) (*PresentationToken, error) {
	header, payload, sig, err := splitToken(token)
	if err != nil {
		return nil, err
	}

	if header.Type != TypePresentation {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "unexpected token type %q", header.Type)
	}

	schemeAlg := header.Algorithm

	var holderKey []byte

	if header.Algorithm == AlgES256 {
		schemeAlg = header.ContentType

		holderKey, payload, err = verifyHolderBinding(token, header)
		if err != nil {
			return nil, err
		}
	} else if len(sig) != 0 {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput, "%q token must be unsecured", header.Algorithm)
	}

	pres, err := disclosure.ParsePresentation(payload)
	if err != nil {
		return nil, errors.Wrap(err, "parse presentation payload")
	}

	alg, err := Algorithm(pres.Scheme)
	if err != nil {
		return nil, err
	}

	if schemeAlg != alg {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"token algorithm %q does not match presentation scheme %q", schemeAlg, pres.Scheme)
	}

	return &PresentationToken{Header: header, Presentation: pres, HolderKey: holderKey}, nil
}

func applyOpts(opts []NewOpt) *newOpts {
	nOpts := &newOpts{id: uuid.New().String()}

	for _, opt := range opts {
		opt(nOpts)
	}

	return nOpts
}

func newHeader(typ string, scheme disclosure.Scheme, issuerPub disclosure.PublicKey,
	nOpts *newOpts) (*Header, error) {
	if issuerPub == nil {
		return nil, errors.Wrap(disclosure.ErrMalformedInput, "nil issuer public key")
	}

	if issuerPub.Scheme() != scheme {
		return nil, errors.Wrapf(disclosure.ErrMalformedInput,
			"issuer key scheme %q does not match artifact scheme %q", issuerPub.Scheme(), scheme)
	}

	alg, err := Algorithm(scheme)
	if err != nil {
		return nil, err
	}

	iss, err := IssuerDID(issuerPub)
	if err != nil {
		return nil, err
	}

	return &Header{Algorithm: alg, Type: typ, Issuer: iss, ID: nOpts.id}, nil
}

func serializeUnsecured(header *Header, payload []byte) (string, error) {
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return "", errors.Wrapf(disclosure.ErrMalformedInput, "marshal token header: %s", err)
	}

	return fmt.Sprintf("%s.%s.",
		base64.RawURLEncoding.EncodeToString(headerBytes),
		base64.RawURLEncoding.EncodeToString(payload)), nil
}

func serializeHolderBound(header *Header, payload []byte, binder *signer.ECDSASigner) (string, error) {
	_, holderKeyID := fingerprint.CreateDIDKey(fingerprint.P256PubKeyMultiCodec, binder.MarshalPublicKey())

	key := jose.SigningKey{Algorithm: jose.ES256, Key: binder.PrivateKey()}

	signerOpts := &jose.SignerOptions{}
	signerOpts.WithType(jose.ContentType(header.Type))
	signerOpts.WithContentType(jose.ContentType(header.Algorithm))
	signerOpts.WithHeader("iss", header.Issuer)
	signerOpts.WithHeader("kid", holderKeyID)

	if header.ID != "" {
		signerOpts.WithHeader("jti", header.ID)
	}

	joseSigner, err := jose.NewSigner(key, signerOpts)
	if err != nil {
		return "", errors.Wrapf(disclosure.ErrPrimitiveFailure, "create holder signer: %s", err)
	}

	jws, err := joseSigner.Sign(payload)
	if err != nil {
		return "", errors.Wrapf(disclosure.ErrPrimitiveFailure, "sign token: %s", err)
	}

	serialized, err := jws.CompactSerialize()
	if err != nil {
		return "", errors.Wrapf(disclosure.ErrPrimitiveFailure, "serialize token: %s", err)
	}

	return serialized, nil
}

func verifyHolderBinding(token string, header *Header) ([]byte, []byte, error) {
	if header.KeyID == "" {
		return nil, nil, errors.Wrap(disclosure.ErrMalformedInput, "holder bound token carries no kid")
	}

	didKey := strings.Split(header.KeyID, "#")[0]

	methodID, err := fingerprint.MethodIDFromDIDKey(didKey)
	if err != nil {
		return nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse holder DID: %s", err)
	}

	keyBytes, code, err := fingerprint.PubKeyFromFingerprint(methodID)
	if err != nil {
		return nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse holder key: %s", err)
	}

	if code != fingerprint.P256PubKeyMultiCodec {
		return nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "unexpected holder key multicodec %#x", code)
	}

	pubKey, err := signer.ParseECDSAP256PublicKey(keyBytes)
	if err != nil {
		return nil, nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "parse holder key: %s", err)
	}

	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse signed token: %s", err)
	}

	payload, err := jws.Verify(pubKey)
	if err != nil {
		return nil, nil, errors.Wrapf(disclosure.ErrPrimitiveFailure, "holder signature: %s", err)
	}

	return keyBytes, payload, nil
}

func splitToken(token string) (*Header, []byte, []byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, nil, nil, errors.Wrap(disclosure.ErrMalformedInput, "token must have three segments")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "decode token header: %s", err)
	}

	header := &Header{}
	if err := json.Unmarshal(headerBytes, header); err != nil {
		return nil, nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "parse token header: %s", err)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "decode token payload: %s", err)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, errors.Wrapf(disclosure.ErrMalformedInput, "decode token signature: %s", err)
	}

	return header, payload, signature, nil
}
