// Copyright 2025 Certen Protocol
//
// Package memory implements pkg/keri/storage's interfaces over
// in-process, mutex-guarded maps. Grounded on MemoryKV in the teacher's
// main.go and the in-memory test-double patterns used throughout the
// teacher's own test files. This is the default binding and the one
// every other package's tests run against.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/receipt"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
)

// KEL is an in-memory KELStore keyed by (prefix, sn).
type KEL struct {
	mu     sync.RWMutex
	events map[string]map[uint64]*event.SignedEvent
}

// NewKEL returns an empty in-memory KEL store.
func NewKEL() *KEL {
	return &KEL{events: make(map[string]map[uint64]*event.SignedEvent)}
}

func (k *KEL) Append(_ context.Context, se *event.SignedEvent) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	prefix := se.Event.Prefix
	sn := se.Event.SnUint
	if k.events[prefix] == nil {
		k.events[prefix] = make(map[uint64]*event.SignedEvent)
	}
	if _, exists := k.events[prefix][sn]; exists {
		return storage.ErrDuplicate
	}
	k.events[prefix][sn] = se
	return nil
}

func (k *KEL) Get(_ context.Context, prefix string, sn uint64) (*event.SignedEvent, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	se, ok := k.events[prefix][sn]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return se, nil
}

func (k *KEL) GetRange(_ context.Context, prefix string, start uint64, end *uint64) ([]*event.SignedEvent, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	byPrefix := k.events[prefix]
	var sns []uint64
	for sn := range byPrefix {
		if sn < start {
			continue
		}
		if end != nil && sn > *end {
			continue
		}
		sns = append(sns, sn)
	}
	sort.Slice(sns, func(i, j int) bool { return sns[i] < sns[j] })
	out := make([]*event.SignedEvent, 0, len(sns))
	for _, sn := range sns {
		out = append(out, byPrefix[sn])
	}
	return out, nil
}

func (k *KEL) GetLatest(_ context.Context, prefix string) (*event.SignedEvent, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	byPrefix := k.events[prefix]
	if len(byPrefix) == 0 {
		return nil, storage.ErrNotFound
	}
	var max uint64
	first := true
	for sn := range byPrefix {
		if first || sn > max {
			max = sn
			first = false
		}
	}
	return byPrefix[max], nil
}

func (k *KEL) GetByDigest(_ context.Context, prefix, digest string) (*event.SignedEvent, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, se := range k.events[prefix] {
		if se.Event.Digest == digest {
			return se, nil
		}
	}
	return nil, storage.ErrNotFound
}

// State is an in-memory StateStore keyed by prefix.
type State struct {
	mu     sync.RWMutex
	states map[string]state.State
}

func NewState() *State {
	return &State{states: make(map[string]state.State)}
}

func (s *State) Get(_ context.Context, prefix string) (state.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[prefix]
	if !ok {
		return state.State{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *State) Put(_ context.Context, st state.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.Prefix] = st
	return nil
}

func (s *State) Delete(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, prefix)
	return nil
}

// Receipts is an in-memory ReceiptStore keyed by (event_digest, witness_prefix).
type Receipts struct {
	mu   sync.RWMutex
	byEv map[string]map[string]receipt.Receipt
}

func NewReceipts() *Receipts {
	return &Receipts{byEv: make(map[string]map[string]receipt.Receipt)}
}

func (r *Receipts) Add(_ context.Context, rc receipt.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byEv[rc.EventDigest] == nil {
		r.byEv[rc.EventDigest] = make(map[string]receipt.Receipt)
	}
	r.byEv[rc.EventDigest][rc.WitnessPrefix] = rc
	return nil
}

func (r *Receipts) GetByEvent(_ context.Context, eventDigest string) ([]receipt.Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]receipt.Receipt, 0, len(r.byEv[eventDigest]))
	for _, rc := range r.byEv[eventDigest] {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WitnessPrefix < out[j].WitnessPrefix })
	return out, nil
}

func (r *Receipts) GetOne(_ context.Context, eventDigest, witnessPrefix string) (receipt.Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.byEv[eventDigest][witnessPrefix]
	if !ok {
		return receipt.Receipt{}, storage.ErrNotFound
	}
	return rc, nil
}

func (r *Receipts) Count(_ context.Context, eventDigest string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEv[eventDigest]), nil
}

// Escrow is an in-memory EscrowStore keyed by the escrowed event's digest.
type Escrow struct {
	mu      sync.RWMutex
	entries map[string]storage.Escrowed
	ttl     time.Duration
}

// NewEscrow builds an in-memory EscrowStore that stamps newly-escrowed
// entries with ttl (ESCROW_TTL). A zero ttl falls back to storage.DefaultTTL.
func NewEscrow(ttl time.Duration) *Escrow {
	if ttl <= 0 {
		ttl = storage.DefaultTTL
	}
	return &Escrow{entries: make(map[string]storage.Escrowed), ttl: ttl}
}

// SeedRaw inserts esc verbatim, bypassing Escrow's attempt-preservation
// logic. Exported for fixture setup in other packages' tests (e.g.
// backdating an entry's Created time to exercise TTL eviction).
func (e *Escrow) SeedRaw(_ context.Context, esc storage.Escrowed) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[esc.Event.Event.Digest] = esc
	return nil
}

func (e *Escrow) Escrow(_ context.Context, se *event.SignedEvent, reason storage.EscrowReason) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	digest := se.Event.Digest
	existing, ok := e.entries[digest]
	created, ttl, attempts := time.Now(), e.ttl, 0
	if ok {
		created, ttl, attempts = existing.Created, existing.TTL, existing.Attempts
	}
	e.entries[digest] = storage.Escrowed{
		Event:    se,
		Reason:   reason,
		Created:  created,
		TTL:      ttl,
		Attempts: attempts,
	}
	return nil
}

func (e *Escrow) ListByPrefix(_ context.Context, prefix string) ([]storage.Escrowed, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []storage.Escrowed
	for _, esc := range e.entries {
		if esc.Event.Event.Prefix == prefix {
			out = append(out, esc)
		}
	}
	return out, nil
}

func (e *Escrow) ListAll(_ context.Context) ([]storage.Escrowed, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]storage.Escrowed, 0, len(e.entries))
	for _, esc := range e.entries {
		out = append(out, esc)
	}
	return out, nil
}

func (e *Escrow) Promote(_ context.Context, digest string) (*event.SignedEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	esc, ok := e.entries[digest]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(e.entries, digest)
	return esc.Event, nil
}

func (e *Escrow) Remove(_ context.Context, digest string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[digest]; !ok {
		return storage.ErrNotFound
	}
	delete(e.entries, digest)
	return nil
}
