// Copyright 2025 Certen Protocol
//
// Package storage declares the four capability interfaces the core
// depends on — KEL, State, Receipt, and Escrow stores — without binding
// to any concrete backend. Concrete bindings live under pkg/storage/*;
// this package only pins the contracts spec.md §4.6 requires them to
// honor: conditional append, dedup, and TTL.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/receipt"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
)

// ErrDuplicate is returned by KELStore.Append when (prefix, sn) already
// has an event stored — first writer wins, per spec.md invariant 3.
var ErrDuplicate = errors.New("keri: duplicate event")

// ErrNotFound is returned by any Get-style method when the requested
// entity does not exist. Mirrors pkg/database/errors.go's
// ErrNotFound/ErrProofNotFound sentinel style.
var ErrNotFound = errors.New("keri: not found")

// DefaultTTL is the escrow eviction window a binding applies when an
// event is first escrowed, per spec.md §4.9's TTL eviction rule.
const DefaultTTL = 24 * time.Hour

// EscrowReason classifies why an event could not be appended directly,
// per spec.md §3's EscrowedEvent.
type EscrowReason string

const (
	ReasonOutOfOrder       EscrowReason = "out_of_order"
	ReasonPartiallySigned  EscrowReason = "partially_signed"
	ReasonMissingDelegator EscrowReason = "missing_delegator"
	ReasonMissingReceipts  EscrowReason = "missing_receipts"
)

// Escrowed is a parked event awaiting its promotion precondition, or TTL
// eviction.
type Escrowed struct {
	Event     *event.SignedEvent
	Reason    EscrowReason
	Created   time.Time
	TTL       time.Duration
	Attempts  int // number of promotion attempts made this TTL window
}

// Expired reports whether this escrow entry has outlived its TTL as of now.
func (e Escrowed) Expired(now time.Time) bool {
	return now.Sub(e.Created) > e.TTL
}

// KELStore is the append-only Key Event Log. Append enforces uniqueness
// of (prefix, sn) only — chain validity is the Validator's job, never
// pushed down into storage, per spec.md's design note in §9.
type KELStore interface {
	// Append conditionally stores ev at (ev.Event.Prefix, ev.Event.SnUint).
	// Returns ErrDuplicate if that slot is already occupied.
	Append(ctx context.Context, ev *event.SignedEvent) error
	Get(ctx context.Context, prefix string, sn uint64) (*event.SignedEvent, error)
	// GetRange returns events in [start, end] inclusive; end == nil means
	// "through the latest sn for this prefix," per spec.md §10's
	// range-query semantics.
	GetRange(ctx context.Context, prefix string, start uint64, end *uint64) ([]*event.SignedEvent, error)
	GetLatest(ctx context.Context, prefix string) (*event.SignedEvent, error)
	GetByDigest(ctx context.Context, prefix, digest string) (*event.SignedEvent, error)
}

// StateStore holds the single current derived State per prefix.
// Last-writer-wins: no ordering invariant beyond what the processor
// enforces (state is always written after the KEL append that justifies
// it), per spec.md §4.6 and §5.
type StateStore interface {
	Get(ctx context.Context, prefix string) (state.State, error)
	Put(ctx context.Context, st state.State) error
	Delete(ctx context.Context, prefix string) error
}

// ReceiptStore holds non-transferable witness receipts, deduplicated per
// (event_digest, witness_prefix).
type ReceiptStore interface {
	Add(ctx context.Context, r receipt.Receipt) error
	GetByEvent(ctx context.Context, eventDigest string) ([]receipt.Receipt, error)
	GetOne(ctx context.Context, eventDigest, witnessPrefix string) (receipt.Receipt, error)
	Count(ctx context.Context, eventDigest string) (int, error)
}

// EscrowStore parks events whose preconditions are not yet satisfied,
// keyed by (prefix, reason, digest) per spec.md §3's lifecycle.
type EscrowStore interface {
	Escrow(ctx context.Context, ev *event.SignedEvent, reason EscrowReason) error
	ListByPrefix(ctx context.Context, prefix string) ([]Escrowed, error)
	ListAll(ctx context.Context) ([]Escrowed, error)
	// Promote atomically returns and removes the escrow entry for digest,
	// or ErrNotFound if none exists.
	Promote(ctx context.Context, digest string) (*event.SignedEvent, error)
	Remove(ctx context.Context, digest string) error
}
