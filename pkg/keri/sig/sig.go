// Copyright 2025 Certen Protocol
//
// Package sig verifies indexed controller signatures and unindexed
// witness signatures over an event's raw bytes. Verification never runs
// against a re-serialized KED — only the bytes the signer actually
// signed.
//
// Schemes are pluggable, registered by their qb64 leading code, the same
// registry-of-codecs shape the teacher uses for attestation schemes in
// pkg/strategy/registry.go, generalized here from "chain platform ->
// attestation scheme" to "qb64 code -> verifier".
package sig

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidSignature is returned when a signature fails cryptographic
// verification, or a qb64 key/signature token cannot be decoded.
// Terminal per spec.md §7.
var ErrInvalidSignature = errors.New("keri: invalid signature")

// ErrUnknownScheme is returned when a key's qb64 code has no registered
// Verifier.
var ErrUnknownScheme = errors.New("keri: unknown signature scheme")

// Scheme identifies a signature algorithm by its qb64 leading code for
// verifier keys.
type Scheme string

const (
	// Ed25519 is "D", the code for a transferable Ed25519 verifier key.
	// Non-transferable witness keys reuse the same key code; their
	// non-transferability is a property of the event that names them
	// (absence of a next-key commitment), not of the key encoding.
	Ed25519 Scheme = "D"
	// Secp256k1ECDSA is "1AAA", a four-character code, matching CESR's
	// convention of reserving longer codes for less common key types.
	Secp256k1ECDSA Scheme = "1AAA"
)

// Verifier checks a single qb64-encoded signature over raw bytes given a
// qb64-encoded public key.
type Verifier interface {
	Scheme() Scheme
	Verify(qb64Pub string, msg []byte, qb64Sig string) (bool, error)
}

// Signer produces qb64-encoded signatures over raw bytes and exposes the
// signer's own qb64-encoded public key. Used by the Receipt Generator.
type Signer interface {
	Scheme() Scheme
	Sign(msg []byte) (qb64Sig string, err error)
	PublicKeyQb64() string
}

// Registry is a scheme-keyed lookup of Verifiers, mirroring
// pkg/strategy.Registry's attestation-strategy map.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[Scheme]Verifier
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[Scheme]Verifier)}
}

// Register adds a Verifier, keyed by its own declared scheme.
func (r *Registry) Register(v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[v.Scheme()] = v
}

// Get returns the Verifier registered for scheme, or ErrUnknownScheme.
func (r *Registry) Get(scheme Scheme) (Verifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verifiers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}
	return v, nil
}

// schemeOfKey derives the signature scheme from a qb64 key's leading
// code. KERI packs longer multi-character codes (like secp256k1's
// "1AAA") ahead of the single-character codes in the qb64 alphabet, so
// the longest matching prefix wins.
func schemeOfKey(qb64Key string) (Scheme, error) {
	for _, s := range []Scheme{Secp256k1ECDSA, Ed25519} {
		if len(qb64Key) >= len(s) && qb64Key[:len(s)] == string(s) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: key %q", ErrUnknownScheme, qb64Key)
}

// VerifyQb64 verifies a signature given a qb64-encoded public key,
// dispatching to the registered Verifier for that key's scheme.
func (r *Registry) VerifyQb64(qb64Key string, msg []byte, qb64Sig string) (bool, error) {
	scheme, err := schemeOfKey(qb64Key)
	if err != nil {
		return false, err
	}
	v, err := r.Get(scheme)
	if err != nil {
		return false, err
	}
	return v.Verify(qb64Key, msg, qb64Sig)
}
