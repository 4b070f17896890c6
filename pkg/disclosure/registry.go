/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package disclosure

import (
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-sdvc-go/pkg/doc/claimset"
)

var logger = log.New("aries-sdvc/disclosure")

// Registry is the verification engine: it holds one backend per scheme and
// dispatches presentations to the backend named by their scheme tag.
type Registry struct {
	backends map[Scheme]Backend
}

// Option configures a Registry.
type Option func(*Registry)

// WithBackend registers a backend under its own scheme, replacing any
// previously registered backend for that scheme.
func WithBackend(backend Backend) Option {
	return func(r *Registry) {
		r.backends[backend.Scheme()] = backend
	}
}

// NewRegistry builds a registry from the given options. A registry with no
// backends is valid and rejects every presentation.
func NewRegistry(opts ...Option) *Registry {
	registry := &Registry{backends: map[Scheme]Backend{}}

	for _, opt := range opts {
		opt(registry)
	}

	return registry
}

// Backend returns the backend registered for the scheme.
func (r *Registry) Backend(scheme Scheme) (Backend, error) {
	backend, ok := r.backends[scheme]
	if !ok {
		return nil, errors.Wrapf(ErrMalformedInput, "no backend registered for scheme %q", scheme)
	}

	return backend, nil
}

// VerifyPresentation dispatches the presentation to the backend named by its
// scheme and returns the disclosed claims on success. The public key must
// belong to the same scheme as the presentation.
func (r *Registry) VerifyPresentation(pres *Presentation, pub PublicKey) ([]claimset.Claim, error) {
	if pres == nil {
		return nil, errors.Wrap(ErrMalformedInput, "nil presentation")
	}

	if pub == nil {
		return nil, errors.Wrap(ErrMalformedInput, "nil public key")
	}

	backend, err := r.Backend(pres.Scheme)
	if err != nil {
		return nil, err
	}

	if pub.Scheme() != pres.Scheme {
		return nil, errors.Wrapf(ErrMalformedInput, "public key scheme %q does not match presentation scheme %q",
			pub.Scheme(), pres.Scheme)
	}

	claims, err := backend.Verify(pres, pub)
	if err != nil {
		return nil, errors.Wrapf(err, "verify %q presentation", pres.Scheme)
	}

	logger.Debugf("verified %q presentation disclosing %d of its claims", pres.Scheme, len(claims))

	return claims, nil
}
