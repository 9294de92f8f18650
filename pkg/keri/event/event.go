// Copyright 2025 Certen Protocol
//
// Package event implements the Event Codec: parsing and serializing a Key
// Event Dictionary (KED), and verifying its Self-Addressing IDentifier.

package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEvent covers malformed KEDs: bad version string, wrong shape,
// missing required fields, or a SAID mismatch. Terminal, never escrowable.
var ErrInvalidEvent = errors.New("keri: invalid event")

// Type is the event family discriminator, the KED's "t" field.
type Type string

const (
	Icp Type = "icp"
	Rot Type = "rot"
	Ixn Type = "ixn"
	Dip Type = "dip"
	Drt Type = "drt"
)

func (t Type) Valid() bool {
	switch t {
	case Icp, Rot, Ixn, Dip, Drt:
		return true
	}
	return false
}

// IsEstablishment reports whether this event type carries its own
// signing key set (Icp, Rot, Dip, Drt) as opposed to inheriting the
// prior state's keys (Ixn).
func (t Type) IsEstablishment() bool {
	return t == Icp || t == Rot || t == Dip || t == Drt
}

// IsInception reports whether this is an Icp or Dip, the two event
// types that start a KEL.
func (t Type) IsInception() bool {
	return t == Icp || t == Dip
}

// IsDelegated reports whether this event type carries a delegator AID.
func (t Type) IsDelegated() bool {
	return t == Dip || t == Drt
}

// Seal is either a digest seal {d} or an event seal {i, s, d}, per
// spec.md §3's anchors list.
type Seal struct {
	Prefix string `json:"i,omitempty"`
	Sn     string `json:"s,omitempty"`
	Digest string `json:"d"`
}

// IsEventSeal reports whether this seal anchors a specific event
// (carries i and s) rather than a bare digest.
func (s Seal) IsEventSeal() bool {
	return s.Prefix != "" && s.Sn != ""
}

// KED is the canonical JSON shape of a key event, field-for-field with
// KERI's wire format. Threshold fields are raw json.RawMessage because
// their shape (string vs. array-of-arrays) depends on whether the
// threshold is simple or weighted; pkg/keri/threshold parses them.
type KED struct {
	Version        string          `json:"v"`
	Digest         string          `json:"d"`
	Prefix         string          `json:"i"`
	Sn             string          `json:"s"`
	Type           Type            `json:"t"`
	PriorDigest    string          `json:"p,omitempty"`
	SigningKeys    []string        `json:"k,omitempty"`
	SigningThresh  json.RawMessage `json:"kt,omitempty"`
	NextKeyDigest  string          `json:"n,omitempty"`
	Witnesses      []string        `json:"b,omitempty"`
	WitnessThresh  json.RawMessage `json:"bt,omitempty"`
	WitnessesAdd   []string        `json:"ba,omitempty"`
	WitnessesCut   []string        `json:"br,omitempty"`
	Delegator      string          `json:"di,omitempty"`
	Anchors        []Seal          `json:"a,omitempty"`
}

// Event is a parsed KED plus the original bytes it was parsed from and
// its verified digest, per spec.md §3.
type Event struct {
	KED
	Raw    []byte
	SnUint uint64
}

// Prefix/Digest/Sn accessors read naturally off the embedded KED, but Sn
// also needs a parsed uint64 form for comparisons; SnUint carries that.

// IndexedSignature is a controller signature over an event's raw bytes,
// indexed into the relevant key list (see pkg/keri/sig). Signature is
// the qb64-encoded signature text as it travels on the wire.
type IndexedSignature struct {
	Index     int
	Signature string
}

// SignedEvent pairs an Event with its indexed controller signatures.
type SignedEvent struct {
	Event      *Event
	Signatures []IndexedSignature
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}
