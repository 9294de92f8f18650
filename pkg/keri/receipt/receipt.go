// Copyright 2025 Certen Protocol
//
// Package receipt implements the Receipt Generator: producing a
// non-transferable receipt couple (witness verfer + unindexed signature
// over raw event bytes) for an accepted event. Grounded on
// loadOrGenerateEd25519Key and NewEd25519StrategyFromKeyHex/
// NewEd25519StrategyWithNewKey in the teacher's main.go and
// pkg/attestation/strategy/ed25519_strategy.go.
package receipt

import (
	"fmt"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/sig"
)

// Receipt is a non-transferable witness receipt, per spec.md §3. The
// witness prefix is itself the witness's permanent public key qb64 —
// non-transferable witnesses have no separate identifier.
type Receipt struct {
	EventDigest   string
	EventSn       uint64
	EventPrefix   string
	WitnessPrefix string
	Signature     string // qb64-encoded unindexed signature
}

// Generate produces a Receipt for ev, signed by signer. The signature
// covers ev.Raw directly — the same "verify against raw bytes, never a
// re-serialized KED" rule spec.md §4.3 applies symmetrically to signing.
func Generate(ev *event.Event, signer sig.Signer) (Receipt, error) {
	qsig, err := signer.Sign(ev.Raw)
	if err != nil {
		return Receipt{}, fmt.Errorf("keri: generate receipt: %w", err)
	}
	return Receipt{
		EventDigest:   ev.Digest,
		EventSn:       ev.SnUint,
		EventPrefix:   ev.Prefix,
		WitnessPrefix: signer.PublicKeyQb64(),
		Signature:     qsig,
	}, nil
}

// Verify checks that r's signature actually validates against ev's raw
// bytes under r's claimed witness prefix, for callers that must not trust
// a stored receipt blindly. The escrow reconciler's MissingReceipts
// predicate only counts stored receipts and does not call Verify.
func Verify(reg *sig.Registry, ev *event.Event, r Receipt) (bool, error) {
	if r.EventDigest != ev.Digest {
		return false, fmt.Errorf("keri: receipt is for digest %s, event is %s", r.EventDigest, ev.Digest)
	}
	return reg.VerifyQb64(r.WitnessPrefix, ev.Raw, r.Signature)
}
