// Copyright 2025 Certen Protocol
//
// Ed25519 signature scheme, grounded on the teacher's
// pkg/attestation/strategy/ed25519_strategy.go. Unlike the teacher's
// attestation signer, this scheme signs raw event bytes directly — no
// domain-separation wrapper, no pre-hash — because spec.md §4.3 requires
// verification "over the event's original raw bytes" with no
// transformation.
package sig

import (
	"fmt"

	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/seriouscoderone/kerihost/pkg/keri/qb64"
)

const ed25519CodeLen = len(Ed25519)

// Ed25519Verifier verifies Ed25519 signatures using CometBFT's ed25519
// wrapper (the teacher's direct dependency) rather than a bare
// crypto/ed25519.Verify call.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Scheme() Scheme { return Ed25519 }

func (Ed25519Verifier) Verify(qb64Pub string, msg []byte, qb64Sig string) (bool, error) {
	rawPub, err := qb64.Decode(qb64Pub, ed25519CodeLen)
	if err != nil {
		return false, fmt.Errorf("%w: decode key: %v", ErrInvalidSignature, err)
	}
	rawSig, err := qb64.Decode(qb64Sig, ed25519CodeLen)
	if err != nil {
		return false, fmt.Errorf("%w: decode signature: %v", ErrInvalidSignature, err)
	}
	if len(rawPub) != cmted25519.PubKeySize {
		return false, fmt.Errorf("%w: key is %d bytes, want %d", ErrInvalidSignature, len(rawPub), cmted25519.PubKeySize)
	}
	pub := cmted25519.PubKey(rawPub)
	return pub.VerifySignature(msg, rawSig), nil
}

// Ed25519Signer holds an Ed25519 private key and signs raw bytes with
// it, qb64-encoding both the signature and its own public key under the
// Ed25519 code.
type Ed25519Signer struct {
	priv cmted25519.PrivKey
}

// NewEd25519Signer wraps an existing CometBFT Ed25519 private key.
func NewEd25519Signer(priv cmted25519.PrivKey) *Ed25519Signer {
	return &Ed25519Signer{priv: priv}
}

// GenerateEd25519Signer creates a fresh random keypair, grounded on
// loadOrGenerateEd25519Key's generate-if-absent behavior in main.go.
func GenerateEd25519Signer() (*Ed25519Signer, error) {
	priv := cmted25519.GenPrivKey()
	return &Ed25519Signer{priv: priv}, nil
}

// Ed25519SignerFromSeed derives a deterministic keypair from a 32-byte
// seed, mirroring NewEd25519StrategyFromSeed.
func Ed25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != 32 {
		return nil, fmt.Errorf("keri: ed25519 seed must be 32 bytes, got %d", len(seed))
	}
	priv := cmted25519.GenPrivKeyFromSecret(seed)
	return &Ed25519Signer{priv: priv}, nil
}

func (s *Ed25519Signer) Scheme() Scheme { return Ed25519 }

func (s *Ed25519Signer) Sign(msg []byte) (string, error) {
	sig, err := s.priv.Sign(msg)
	if err != nil {
		return "", fmt.Errorf("keri: ed25519 sign: %w", err)
	}
	return qb64.Encode(string(Ed25519), sig), nil
}

func (s *Ed25519Signer) PublicKeyQb64() string {
	pub := s.priv.PubKey().Bytes()
	return qb64.Encode(string(Ed25519), pub)
}
