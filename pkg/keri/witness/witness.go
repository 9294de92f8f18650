// Copyright 2025 Certen Protocol
//
// Package witness is the Witness Facade: it aggregates the Event
// Processor, the four storage interfaces, and the Escrow Reconciler
// behind the handful of read/write operations spec.md §4.10 names.
// Grounded on pkg/attestation/service.go's Service struct, which plays
// the same aggregating role for the teacher's attestation subsystem —
// a thin struct of collaborator pointers with methods the HTTP layer
// calls directly, no business logic duplicated here that already lives
// in processor/escrow/state.
package witness

import (
	"context"
	"time"

	"github.com/seriouscoderone/kerihost/pkg/keri/escrow"
	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/processor"
	"github.com/seriouscoderone/kerihost/pkg/keri/receipt"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
)

// Deps bundles every collaborator the facade's operations read from or
// write through.
type Deps struct {
	KEL         storage.KELStore
	State       storage.StateStore
	Receipts    storage.ReceiptStore
	Escrow      storage.EscrowStore
	Processor   *processor.Processor
	Reconciler  *escrow.Reconciler
	WitnessAID  string // this witness's own qb64 prefix, for OOBI
	PublicURL   string // base URL this witness is reachable at, for OOBI
}

// Witness is the facade a server's HTTP handlers call into.
type Witness struct {
	deps Deps
}

// New returns a Witness wired to deps.
func New(deps Deps) *Witness {
	return &Witness{deps: deps}
}

// ProcessBytes parses, validates, and (if accepted) persists raw event
// bytes plus their controller signatures, per spec.md §4.7. No witness
// receipt is generated or stored for an accepted event.
func (w *Witness) ProcessBytes(ctx context.Context, raw []byte, sigs []event.IndexedSignature) (processor.Result, error) {
	return w.deps.Processor.ProcessBytes(ctx, raw, sigs)
}

// GetState returns the current derived state for prefix, enriched with
// live corroboration metadata: LocalOnly until the event's receipt count
// reaches its witness threshold, ReceiptThresholdMet once it does. The
// Key-State Engine itself never computes this — it would require reading
// the receipt store, which is I/O the engine deliberately stays free of.
func (w *Witness) GetState(ctx context.Context, prefix string) (state.State, error) {
	st, err := w.deps.State.Get(ctx, prefix)
	if err != nil {
		return state.State{}, err
	}

	required := st.WitnessThreshold.MinSignatures()
	seen := 0
	if latest, latestErr := w.deps.KEL.GetLatest(ctx, prefix); latestErr == nil {
		if count, countErr := w.deps.Receipts.Count(ctx, latest.Event.Digest); countErr == nil {
			seen = count
		}
	}

	confidence := state.LocalOnly
	if required > 0 && seen >= required {
		confidence = state.ReceiptThresholdMet
	}
	st.Metadata = &state.HonestMetadata{
		Confidence:        confidence,
		WitnessesSeen:     seen,
		WitnessesRequired: required,
		AsOf:              time.Now(),
	}
	return st, nil
}

// GetKEL returns events for prefix in [start, end]. end == nil means
// "through the latest sn," not "empty" or "unbounded-forward-only" — see
// spec.md §10's range-query semantics, pinned down in witness_test.go.
func (w *Witness) GetKEL(ctx context.Context, prefix string, start uint64, end *uint64) ([]*event.SignedEvent, error) {
	return w.deps.KEL.GetRange(ctx, prefix, start, end)
}

// GetReceipts returns every witness receipt collected for eventDigest.
func (w *Witness) GetReceipts(ctx context.Context, eventDigest string) ([]receipt.Receipt, error) {
	return w.deps.Receipts.GetByEvent(ctx, eventDigest)
}

// Sweep runs one Escrow Reconciler pass on demand, for an operator
// endpoint or a cron-driven caller rather than the internal ticker.
func (w *Witness) Sweep(ctx context.Context) (escrow.SweepResult, error) {
	return w.deps.Reconciler.Sweep(ctx)
}

// Introduce returns this witness's own OOBI-discoverable identity: its
// AID and the OOBI URL a controller would use to reach it directly,
// grounded on original_source/crates/kerihost-witness/src/witness.rs's
// self-registration behavior (spec.md §10 item 4).
func (w *Witness) Introduce() (aid, oobiURL string) {
	return w.deps.WitnessAID, WitnessOOBI(w.deps.PublicURL, w.deps.WitnessAID, w.deps.WitnessAID)
}

// PublicURL returns the base URL this witness advertises itself at, for
// constructing OOBIs rooted at a controller's own AID rather than this
// witness's.
func (w *Witness) PublicURL() string {
	return w.deps.PublicURL
}
