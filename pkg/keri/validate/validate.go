// Copyright 2025 Certen Protocol
//
// Package validate implements the Event Validator: classifying a signed
// event against an optional prior state into one of a closed set of
// outcomes. Grounded on the dispatch-by-classification style of
// pkg/verification/unified_verifier.go — a single Verify entry point
// that returns a closed result enum rather than throwing a distinct
// exception type per branch.
package validate

import (
	"errors"
	"fmt"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/sig"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/threshold"
)

// ErrPriorDigestMismatch is terminal: the event's prior_digest does not
// match the referenced state's latest_digest. Never escrowable.
var ErrPriorDigestMismatch = errors.New("keri: prior digest mismatch")

// Outcome is the closed set of classifications a validation run can
// produce, per spec.md §4.4.
type Outcome int

const (
	Valid Outcome = iota
	Duplicate
	OutOfOrder
	PartiallySigned
	MissingDelegator
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "Valid"
	case Duplicate:
		return "Duplicate"
	case OutOfOrder:
		return "OutOfOrder"
	case PartiallySigned:
		return "PartiallySigned"
	case MissingDelegator:
		return "MissingDelegator"
	default:
		return "Unknown"
	}
}

// Mode selects whether signature verification runs inline (Strict) or
// is deferred to an out-of-band verifier (Lenient), per spec.md §4.4.
type Mode int

const (
	Strict Mode = iota
	Lenient
)

// Result carries the classification plus whatever detail the outcome
// needs — ExpectedSn/ActualSn for OutOfOrder, Have/Need for
// PartiallySigned. Zero values on fields the outcome doesn't use.
type Result struct {
	Outcome    Outcome
	ExpectedSn uint64
	ActualSn   uint64
	Have       int
	Need       int
}

// Validate classifies se against the optional prior state st (nil if
// this prefix has no recorded state yet), using registry to verify
// signatures in Strict mode.
func Validate(registry *sig.Registry, se *event.SignedEvent, st *state.State, mode Mode) (Result, error) {
	ev := se.Event

	var res Result
	var err error
	if ev.SnUint == 0 {
		res, err = validateInception(registry, se, st, mode)
	} else {
		res, err = validateSubsequent(registry, se, st, mode)
	}
	if err != nil {
		return Result{}, err
	}

	// Delegation is checked last, per spec.md §4.4's algorithm 3: it
	// only applies once duplicate/out-of-order/prior-digest/partial-
	// signature classification (algorithms 1-2) has already resolved to
	// Valid. A duplicate or out-of-order delegated event is reported as
	// such, not misclassified MissingDelegator.
	if res.Outcome == Valid && ev.Type.IsDelegated() && !hasDelegatorSeal(ev) {
		return Result{Outcome: MissingDelegator}, nil
	}
	return res, nil
}

func validateInception(registry *sig.Registry, se *event.SignedEvent, st *state.State, mode Mode) (Result, error) {
	ev := se.Event
	if st != nil {
		return Result{Outcome: Duplicate}, nil
	}
	if ev.PriorDigest != "" {
		return Result{}, fmt.Errorf("%w: inception event carries a prior_digest", event.ErrInvalidEvent)
	}

	kt, err := threshold.Parse(ev.SigningThresh)
	if err != nil {
		return Result{}, err
	}
	return checkSignatures(registry, se, ev.SigningKeys, kt, mode)
}

func validateSubsequent(registry *sig.Registry, se *event.SignedEvent, st *state.State, mode Mode) (Result, error) {
	ev := se.Event
	if st == nil {
		return Result{}, fmt.Errorf("%w: sn=%d but no prior state for prefix %s", event.ErrInvalidEvent, ev.SnUint, ev.Prefix)
	}

	expected := st.Sn + 1
	if ev.SnUint != expected {
		if ev.SnUint > expected {
			return Result{Outcome: OutOfOrder, ExpectedSn: expected, ActualSn: ev.SnUint}, nil
		}
		return Result{Outcome: Duplicate, ExpectedSn: expected, ActualSn: ev.SnUint}, nil
	}
	if ev.PriorDigest != st.LatestDigest {
		return Result{}, fmt.Errorf("%w: event prior_digest=%s, state latest_digest=%s", ErrPriorDigestMismatch, ev.PriorDigest, st.LatestDigest)
	}

	if ev.Type.IsEstablishment() {
		kt, err := threshold.Parse(ev.SigningThresh)
		if err != nil {
			return Result{}, err
		}
		return checkSignatures(registry, se, ev.SigningKeys, kt, mode)
	}
	return checkSignatures(registry, se, st.SigningKeys, st.SigningThreshold, mode)
}

// checkSignatures verifies se's signatures against keys/kt, returning
// Valid or PartiallySigned. In Lenient mode, structural checks (index
// range, threshold arity) still run but cryptographic verification is
// skipped and every in-range index counts as present.
func checkSignatures(registry *sig.Registry, se *event.SignedEvent, keys []string, kt threshold.Threshold, mode Mode) (Result, error) {
	if err := kt.CheckArity(len(keys)); err != nil {
		return Result{}, fmt.Errorf("%w: %v", event.ErrInvalidEvent, err)
	}

	present := make([]int, 0, len(se.Signatures))
	for _, isig := range se.Signatures {
		if isig.Index < 0 || isig.Index >= len(keys) {
			continue
		}
		if mode == Lenient {
			present = append(present, isig.Index)
			continue
		}
		ok, err := registry.VerifyQb64(keys[isig.Index], se.Event.Raw, isig.Signature)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", event.ErrInvalidEvent, err)
		}
		if ok {
			present = append(present, isig.Index)
		}
	}

	if kt.IsSatisfiedBy(present) {
		return Result{Outcome: Valid}, nil
	}
	return Result{Outcome: PartiallySigned, Have: len(threshold.Dedupe(present)), Need: kt.MinSignatures()}, nil
}

// hasDelegatorSeal reports whether a delegated event's approving seal
// can be located. This core records the MissingDelegator status but
// does not walk the delegator's own KEL — that lookup is a collaborator
// per spec.md §4.4's note — so it only checks that the event names a
// delegator and carries at least one anchor seal naming itself.
func hasDelegatorSeal(ev *event.Event) bool {
	if ev.Delegator == "" {
		return false
	}
	for _, a := range ev.Anchors {
		if a.IsEventSeal() && a.Prefix == ev.Prefix && a.Sn == ev.Sn {
			return true
		}
	}
	return false
}
