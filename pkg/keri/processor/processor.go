// Copyright 2025 Certen Protocol
//
// Package processor implements the Event Processor: the single entry
// point for ingested event bytes, orchestrating parse, validate,
// witness-authorize, append, and state-derivation. Grounded on the
// orchestration shape of pkg/execution/executor.go and
// pkg/batch/processor.go — parse, validate, branch, persist, derive-
// dependent-state — generalized here to KERI's five-way outcome branch.
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/sig"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
	"github.com/seriouscoderone/kerihost/pkg/keri/validate"
)

// ErrUnauthorizedWitness is terminal: this processor is configured with
// a witness prefix not named in the event's (or current state's)
// witness set, per spec.md §4.7's witness-authorization rule.
var ErrUnauthorizedWitness = errors.New("keri: unauthorized witness")

// Outcome classifies what happened to a processed event.
type Outcome int

const (
	Accepted Outcome = iota
	EscrowedOutcome
	DuplicateOutcome
)

// Result carries the outcome plus whichever detail applies.
type Result struct {
	Outcome   Outcome
	State     state.State
	Reason    storage.EscrowReason
	Validated validate.Result
}

// Deps bundles the collaborators the processor needs. WitnessPrefix is
// optional — an empty string means this processor runs without witness
// authorization (e.g. a pure validator/observer role).
type Deps struct {
	KEL           storage.KELStore
	State         storage.StateStore
	Escrow        storage.EscrowStore
	Registry      *sig.Registry
	WitnessPrefix string
}

// Processor is the Event Processor, stateless beyond its Deps — safe
// for concurrent use across requests, per spec.md §5's cooperative,
// multi-worker concurrency model.
type Processor struct{ deps Deps }

func New(deps Deps) *Processor { return &Processor{deps: deps} }

// ProcessBytes parses raw bytes and runs them through Process.
func (p *Processor) ProcessBytes(ctx context.Context, raw []byte, sigs []event.IndexedSignature) (Result, error) {
	ev, err := event.Parse(raw)
	if err != nil {
		return Result{}, err
	}
	se := &event.SignedEvent{Event: ev, Signatures: sigs}
	return p.Process(ctx, se)
}

// Process runs a parsed, signed event through validation, witness
// authorization, and storage, per spec.md §4.7.
func (p *Processor) Process(ctx context.Context, se *event.SignedEvent) (Result, error) {
	ev := se.Event

	st, err := p.deps.State.Get(ctx, ev.Prefix)
	hasState := true
	if errors.Is(err, storage.ErrNotFound) {
		hasState = false
	} else if err != nil {
		return Result{}, fmt.Errorf("keri: processor: fetch state: %w", err)
	}

	var stPtr *state.State
	if hasState {
		stPtr = &st
	}

	res, err := validate.Validate(p.deps.Registry, se, stPtr, validate.Strict)
	if err != nil {
		return Result{}, err
	}

	if res.Outcome == validate.Valid {
		return p.acceptOnce(ctx, se, stPtr, res)
	}
	return p.dispatchNonValid(ctx, se, res)
}

// dispatchNonValid routes every non-Valid validation outcome to its
// storage.EscrowReason (or DuplicateOutcome), shared by Process and by
// acceptOnce's re-validation-after-race path so neither ever silently
// drops an event that should have been escrowed.
func (p *Processor) dispatchNonValid(ctx context.Context, se *event.SignedEvent, res validate.Result) (Result, error) {
	switch res.Outcome {
	case validate.OutOfOrder:
		return p.escrow(ctx, se, storage.ReasonOutOfOrder, res)
	case validate.PartiallySigned:
		return p.escrow(ctx, se, storage.ReasonPartiallySigned, res)
	case validate.MissingDelegator:
		return p.escrow(ctx, se, storage.ReasonMissingDelegator, res)
	case validate.Duplicate:
		return Result{Outcome: DuplicateOutcome, Validated: res}, nil
	default:
		return Result{}, fmt.Errorf("keri: processor: unknown validation outcome %v", res.Outcome)
	}
}

func (p *Processor) escrow(ctx context.Context, se *event.SignedEvent, reason storage.EscrowReason, res validate.Result) (Result, error) {
	if err := p.deps.Escrow.Escrow(ctx, se, reason); err != nil {
		return Result{}, fmt.Errorf("keri: processor: escrow: %w", err)
	}
	return Result{Outcome: EscrowedOutcome, Reason: reason, Validated: res}, nil
}

// acceptOnce performs witness authorization, appends to the KEL, and
// derives+persists the next state, retrying once on a racing
// KELStore.Append duplicate by re-fetching state and re-validating.
func (p *Processor) acceptOnce(ctx context.Context, se *event.SignedEvent, stPtr *state.State, res validate.Result) (Result, error) {
	if err := p.authorizeWitness(se.Event, stPtr); err != nil {
		return Result{}, err
	}

	next, err := deriveState(se.Event, stPtr)
	if err != nil {
		return Result{}, err
	}

	err = p.deps.KEL.Append(ctx, se)
	if err == nil {
		if err := p.deps.State.Put(ctx, next); err != nil {
			return Result{}, fmt.Errorf("keri: processor: put state: %w", err)
		}
		return Result{Outcome: Accepted, State: next, Validated: res}, nil
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		return Result{}, fmt.Errorf("keri: processor: append: %w", err)
	}

	// Racing writer won (prior digest mismatch surfaces as KELStore
	// duplicate here since storage enforces only (prefix, sn) uniqueness,
	// not chain validity) — re-fetch state and retry once.
	refreshed, err := p.deps.State.Get(ctx, se.Event.Prefix)
	if err != nil {
		return Result{}, fmt.Errorf("keri: processor: re-fetch state after race: %w", err)
	}
	revalidated, err := validate.Validate(p.deps.Registry, se, &refreshed, validate.Strict)
	if err != nil {
		return Result{}, err
	}
	if revalidated.Outcome != validate.Valid {
		return p.dispatchNonValid(ctx, se, revalidated)
	}
	if err := p.authorizeWitness(se.Event, &refreshed); err != nil {
		return Result{}, err
	}
	next, err = deriveState(se.Event, &refreshed)
	if err != nil {
		return Result{}, err
	}
	if err := p.deps.KEL.Append(ctx, se); err != nil {
		return Result{}, fmt.Errorf("keri: processor: append retry: %w", err)
	}
	if err := p.deps.State.Put(ctx, next); err != nil {
		return Result{}, fmt.Errorf("keri: processor: put state retry: %w", err)
	}
	return Result{Outcome: Accepted, State: next, Validated: revalidated}, nil
}

func deriveState(ev *event.Event, prior *state.State) (state.State, error) {
	if prior == nil {
		return state.FromInception(ev)
	}
	return state.Apply(*prior, ev)
}

// authorizeWitness enforces spec.md §4.7's witness-authorization rule.
// A no-op when this processor carries no configured witness prefix.
func (p *Processor) authorizeWitness(ev *event.Event, prior *state.State) error {
	if p.deps.WitnessPrefix == "" {
		return nil
	}
	var set []string
	if ev.SnUint == 0 {
		set = ev.Witnesses
	} else if prior != nil {
		set = prior.Witnesses
	}
	for _, w := range set {
		if w == p.deps.WitnessPrefix {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not in witness set for %s at sn=%d", ErrUnauthorizedWitness, p.deps.WitnessPrefix, ev.Prefix, ev.SnUint)
}
