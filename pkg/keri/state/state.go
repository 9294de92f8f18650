// Copyright 2025 Certen Protocol
//
// Package state implements the Key-State Engine: a pure, I/O-free fold
// over a Key Event Log that computes current signing keys, next-key
// commitment, witness set, and thresholds. Grounded on the fold-style
// commit-time mutators in pkg/ledger/store.go, adapted from "mutate a KV
// store directly" to "compute the next value," with persistence pushed
// to the caller (the Event Processor) per spec.md §4.6.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/threshold"
)

// ErrSequenceMismatch is returned by Apply when the event's sn does not
// immediately follow the current state's sn.
var ErrSequenceMismatch = errors.New("keri: sequence mismatch")

// ErrPriorDigestMismatch is returned when an event's prior_digest does
// not match the current state's latest_digest. Terminal, never escrowable.
var ErrPriorDigestMismatch = errors.New("keri: prior digest mismatch")

// ErrPrefixMismatch is returned when an event's prefix does not match
// the state it is being applied to.
var ErrPrefixMismatch = errors.New("keri: prefix mismatch")

// Confidence is the closed set of corroboration-strength qualifiers a
// state view may carry. The word "Final" is deliberately absent: KERI
// never asserts global finality (spec.md §1, §4.10).
type Confidence string

const (
	LocalOnly           Confidence = "LOCAL_ONLY"
	ReceiptThresholdMet Confidence = "RECEIPT_THRESHOLD_MET"
)

// HonestMetadata is attached to a State view by the Witness Facade, not
// by this package — corroboration strength requires reading the receipt
// store, which is I/O, and this engine stays pure. Zero value means "not
// yet enriched."
type HonestMetadata struct {
	Confidence         Confidence
	WitnessesSeen      int
	WitnessesRequired  int
	AsOf               time.Time
}

// State is the derived, never-authored view of an AID's current key
// state, per spec.md §3.
type State struct {
	Prefix           string
	Sn               uint64
	LatestDigest     string
	SigningKeys      []string
	SigningThreshold threshold.Threshold
	NextKeyDigest    string
	Witnesses        []string
	WitnessThreshold threshold.Threshold
	Delegator        string
	Transferable     bool
	Metadata         *HonestMetadata
}

// FromInception derives the initial state from an Icp or Dip event.
func FromInception(ev *event.Event) (State, error) {
	if !ev.Type.IsInception() {
		return State{}, fmt.Errorf("keri: FromInception called with non-inception type %q", ev.Type)
	}
	if ev.SnUint != 0 {
		return State{}, fmt.Errorf("%w: inception event has sn=%d, want 0", ErrSequenceMismatch, ev.SnUint)
	}

	st, err := stateFromEstablishment(ev)
	if err != nil {
		return State{}, err
	}
	st.Sn = 0
	st.LatestDigest = ev.Digest
	st.Delegator = ev.Delegator
	return st, nil
}

// Apply folds one subsequent event into state, returning the next state.
// Rot/Drt replace the establishment fields; Ixn advances only sn and
// latest_digest. Apply never mutates state in place.
func Apply(st State, ev *event.Event) (State, error) {
	if ev.Prefix != st.Prefix {
		return State{}, fmt.Errorf("%w: event prefix %s, state prefix %s", ErrPrefixMismatch, ev.Prefix, st.Prefix)
	}
	if ev.SnUint != st.Sn+1 {
		return State{}, fmt.Errorf("%w: event sn=%d, expected %d", ErrSequenceMismatch, ev.SnUint, st.Sn+1)
	}
	if ev.PriorDigest != st.LatestDigest {
		return State{}, fmt.Errorf("%w: event prior_digest=%s, state latest_digest=%s", ErrPriorDigestMismatch, ev.PriorDigest, st.LatestDigest)
	}

	switch ev.Type {
	case event.Ixn:
		next := st
		next.Sn = ev.SnUint
		next.LatestDigest = ev.Digest
		next.Metadata = nil
		return next, nil
	case event.Rot, event.Drt:
		next, err := stateFromEstablishment(ev)
		if err != nil {
			return State{}, err
		}
		if len(ev.WitnessesAdd) == 0 && len(ev.WitnessesCut) == 0 && len(ev.Witnesses) == 0 {
			// No witness fields at all means this rotation leaves the
			// witness set untouched, not emptied — spec.md §4.5's
			// prior ∪ ba ∖ br == witnesses invariant has nothing to
			// check against, so carry the prior set forward.
			next.Witnesses = st.Witnesses
			next.WitnessThreshold = st.WitnessThreshold
		} else if err := validateWitnessRotation(st.Witnesses, ev); err != nil {
			return State{}, err
		}
		next.Sn = ev.SnUint
		next.LatestDigest = ev.Digest
		next.Delegator = st.Delegator
		return next, nil
	default:
		return State{}, fmt.Errorf("keri: Apply called with inception-only or unknown type %q", ev.Type)
	}
}

// stateFromEstablishment extracts the establishment fields (keys,
// thresholds, next-key commitment, witnesses) common to Icp/Dip/Rot/Drt.
func stateFromEstablishment(ev *event.Event) (State, error) {
	kt, err := threshold.Parse(ev.SigningThresh)
	if err != nil {
		return State{}, err
	}
	if err := kt.CheckArity(len(ev.SigningKeys)); err != nil {
		return State{}, err
	}

	var bt threshold.Threshold
	if len(ev.WitnessThresh) > 0 {
		bt, err = threshold.Parse(ev.WitnessThresh)
		if err != nil {
			return State{}, err
		}
		if err := bt.CheckArity(len(ev.Witnesses)); err != nil {
			return State{}, err
		}
	}

	return State{
		Prefix:           ev.Prefix,
		SigningKeys:      append([]string(nil), ev.SigningKeys...),
		SigningThreshold: kt,
		NextKeyDigest:    ev.NextKeyDigest,
		Witnesses:        append([]string(nil), ev.Witnesses...),
		WitnessThreshold: bt,
		Transferable:     ev.NextKeyDigest != "",
	}, nil
}

// validateWitnessRotation checks that a Rot/Drt event's resulting
// witness set is consistent with its declared additions and removals:
// prior ∪ ba ∖ br == witnesses, per spec.md §4.5.
func validateWitnessRotation(prior []string, ev *event.Event) error {
	if len(ev.WitnessesAdd) == 0 && len(ev.WitnessesCut) == 0 && len(ev.Witnesses) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(prior))
	for _, w := range prior {
		set[w] = struct{}{}
	}
	for _, w := range ev.WitnessesAdd {
		set[w] = struct{}{}
	}
	for _, w := range ev.WitnessesCut {
		delete(set, w)
	}
	if len(set) != len(ev.Witnesses) {
		return fmt.Errorf("%w: witness rotation yields %d witnesses, event declares %d", errInvalidWitnessSet, len(set), len(ev.Witnesses))
	}
	for _, w := range ev.Witnesses {
		if _, ok := set[w]; !ok {
			return fmt.Errorf("%w: declared witness %s not in prior ∪ ba ∖ br", errInvalidWitnessSet, w)
		}
	}
	return nil
}

var errInvalidWitnessSet = errors.New("keri: invalid witness set")
