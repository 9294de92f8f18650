// Copyright 2025 Certen Protocol
//
// Package escrow implements the Escrow Reconciler: a timer-driven sweep
// that promotes escrowed events whose preconditions are now satisfied
// and evicts expired ones. Grounded on pkg/batch/scheduler.go's
// ticker/state-machine shape (Start/Stop, SchedulerState, a
// time.Ticker-driven sweep loop in its own goroutine, checkInterval vs.
// interval), adapted from one fixed cadence to per-reason promotion
// predicates dispatched through a registry modeled on
// pkg/strategy/registry.go's scheme->implementation map.
package escrow

import (
	"context"
	"sync"

	"github.com/seriouscoderone/kerihost/pkg/keri/processor"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
	"github.com/seriouscoderone/kerihost/pkg/keri/validate"
)

// Predicate reports whether an escrowed event's precondition is now
// satisfied and it should be promoted back through the Processor.
type Predicate func(ctx context.Context, deps Deps, esc storage.Escrowed) (bool, error)

// PredicateRegistry maps an escrow reason to its promotion predicate,
// the same scheme-keyed lookup shape as pkg/strategy.Registry.
type PredicateRegistry struct {
	mu         sync.RWMutex
	predicates map[storage.EscrowReason]Predicate
}

// NewPredicateRegistry returns a registry pre-populated with the four
// predicates spec.md §4.9 defines.
func NewPredicateRegistry() *PredicateRegistry {
	r := &PredicateRegistry{predicates: make(map[storage.EscrowReason]Predicate)}
	r.Register(storage.ReasonOutOfOrder, outOfOrderSatisfied)
	r.Register(storage.ReasonPartiallySigned, partiallySignedSatisfied)
	r.Register(storage.ReasonMissingDelegator, missingDelegatorSatisfied)
	r.Register(storage.ReasonMissingReceipts, missingReceiptsSatisfied)
	return r
}

func (r *PredicateRegistry) Register(reason storage.EscrowReason, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[reason] = p
}

func (r *PredicateRegistry) Get(reason storage.EscrowReason) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.predicates[reason]
	return p, ok
}

// Deps bundles the collaborators the reconciler's predicates and
// promotion step need.
type Deps struct {
	KEL       storage.KELStore
	State     storage.StateStore
	Receipts  storage.ReceiptStore
	Escrow    storage.EscrowStore
	Processor *processor.Processor
}

func outOfOrderSatisfied(ctx context.Context, deps Deps, esc storage.Escrowed) (bool, error) {
	ev := esc.Event.Event
	if ev.SnUint == 0 {
		return true, nil
	}
	_, err := deps.KEL.Get(ctx, ev.Prefix, ev.SnUint-1)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func partiallySignedSatisfied(ctx context.Context, deps Deps, esc storage.Escrowed) (bool, error) {
	ev := esc.Event.Event
	var stPtr *state.State
	if ev.SnUint > 0 {
		st, err := deps.State.Get(ctx, ev.Prefix)
		if err == storage.ErrNotFound {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		stPtr = &st
	}
	res, err := validate.Validate(nil, esc.Event, stPtr, validate.Lenient)
	if err != nil {
		return false, err
	}
	// Lenient mode above only checks index-range structure; the real
	// recount needs cryptographic verification, which the reconciler
	// defers to the Processor's own Strict re-validation on promotion.
	// Here we only confirm the event now carries enough distinct
	// indices to be worth retrying.
	return res.Outcome == validate.Valid, nil
}

func missingDelegatorSatisfied(ctx context.Context, deps Deps, esc storage.Escrowed) (bool, error) {
	ev := esc.Event.Event
	if ev.Delegator == "" {
		return false, nil
	}
	latest, err := deps.KEL.GetLatest(ctx, ev.Delegator)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, a := range latest.Event.Anchors {
		if a.IsEventSeal() && a.Prefix == ev.Prefix && a.Sn == ev.Sn && a.Digest == ev.Digest {
			return true, nil
		}
	}
	return false, nil
}

func missingReceiptsSatisfied(ctx context.Context, deps Deps, esc storage.Escrowed) (bool, error) {
	ev := esc.Event.Event
	st, err := deps.State.Get(ctx, ev.Prefix)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	required := st.WitnessThreshold.MinSignatures()
	if required == 0 {
		return true, nil
	}
	count, err := deps.Receipts.Count(ctx, ev.Digest)
	if err != nil {
		return false, err
	}
	return count >= required, nil
}
