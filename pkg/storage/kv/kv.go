// Copyright 2025 Certen Protocol
//
// Package kv implements pkg/keri/storage's interfaces over
// github.com/cometbft/cometbft-db, adapting pkg/kvdb/adapter.go's
// KVAdapter (wrapping dbm.DB) and the typed fixed-prefix, sortable-key
// layout approach of pkg/ledger/store.go to the KEL/State/Receipt/Escrow
// shape spec.md §6 calls for: sn as a fixed-width sortable hex string,
// (event_digest, witness_prefix) composite receipt keys, and
// (prefix, "reason#digest") escrow keys.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/receipt"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
)

const (
	kelPrefix      = "kel:"
	statePrefix    = "state:"
	receiptPrefix  = "receipt:"
	escrowPrefix   = "escrow:"
)

// snKey formats sn as 16 hex digits, zero-padded, so lexicographic byte
// order over keys matches numeric order over sn — the same trick
// systemBlockKey uses with a big-endian uint64 suffix.
func snKey(sn uint64) string {
	return fmt.Sprintf("%016x", sn)
}

func kelEventKey(prefix string, sn uint64) []byte {
	return []byte(kelPrefix + prefix + ":" + snKey(sn))
}

func kelPrefixRange(prefix string) (start, end []byte) {
	p := kelPrefix + prefix + ":"
	return []byte(p), []byte(p + "\xff")
}

func stateKey(prefix string) []byte {
	return []byte(statePrefix + prefix)
}

func receiptKey(eventDigest, witnessPrefix string) []byte {
	return []byte(receiptPrefix + eventDigest + ":" + witnessPrefix)
}

func receiptEventRange(eventDigest string) (start, end []byte) {
	p := receiptPrefix + eventDigest + ":"
	return []byte(p), []byte(p + "\xff")
}

func escrowKey(prefix string, reason storage.EscrowReason, digest string) []byte {
	return []byte(escrowPrefix + prefix + ":" + string(reason) + "#" + digest)
}

// KEL is a KELStore backed by dbm.DB.
type KEL struct{ db dbm.DB }

func NewKEL(db dbm.DB) *KEL { return &KEL{db: db} }

func (k *KEL) Append(_ context.Context, se *event.SignedEvent) error {
	key := kelEventKey(se.Event.Prefix, se.Event.SnUint)
	existing, err := k.db.Get(key)
	if err != nil {
		return fmt.Errorf("keri: kv kel get: %w", err)
	}
	if existing != nil {
		return storage.ErrDuplicate
	}
	b, err := json.Marshal(se)
	if err != nil {
		return fmt.Errorf("keri: kv kel marshal: %w", err)
	}
	if err := k.db.SetSync(key, b); err != nil {
		return fmt.Errorf("keri: kv kel set: %w", err)
	}
	return nil
}

func (k *KEL) Get(_ context.Context, prefix string, sn uint64) (*event.SignedEvent, error) {
	b, err := k.db.Get(kelEventKey(prefix, sn))
	if err != nil {
		return nil, fmt.Errorf("keri: kv kel get: %w", err)
	}
	if b == nil {
		return nil, storage.ErrNotFound
	}
	var se event.SignedEvent
	if err := json.Unmarshal(b, &se); err != nil {
		return nil, fmt.Errorf("keri: kv kel unmarshal: %w", err)
	}
	return &se, nil
}

func (k *KEL) GetRange(_ context.Context, prefix string, start uint64, end *uint64) ([]*event.SignedEvent, error) {
	rStart, rEnd := kelPrefixRange(prefix)
	iter, err := k.db.Iterator(rStart, rEnd)
	if err != nil {
		return nil, fmt.Errorf("keri: kv kel iterator: %w", err)
	}
	defer iter.Close()

	var out []*event.SignedEvent
	for ; iter.Valid(); iter.Next() {
		var se event.SignedEvent
		if err := json.Unmarshal(iter.Value(), &se); err != nil {
			return nil, fmt.Errorf("keri: kv kel unmarshal: %w", err)
		}
		if se.Event.SnUint < start {
			continue
		}
		if end != nil && se.Event.SnUint > *end {
			continue
		}
		out = append(out, &se)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("keri: kv kel iterator: %w", err)
	}
	return out, nil
}

func (k *KEL) GetLatest(ctx context.Context, prefix string) (*event.SignedEvent, error) {
	rStart, rEnd := kelPrefixRange(prefix)
	iter, err := k.db.ReverseIterator(rStart, rEnd)
	if err != nil {
		return nil, fmt.Errorf("keri: kv kel reverse iterator: %w", err)
	}
	defer iter.Close()
	if !iter.Valid() {
		return nil, storage.ErrNotFound
	}
	var se event.SignedEvent
	if err := json.Unmarshal(iter.Value(), &se); err != nil {
		return nil, fmt.Errorf("keri: kv kel unmarshal: %w", err)
	}
	return &se, nil
}

func (k *KEL) GetByDigest(ctx context.Context, prefix, digest string) (*event.SignedEvent, error) {
	all, err := k.GetRange(ctx, prefix, 0, nil)
	if err != nil {
		return nil, err
	}
	for _, se := range all {
		if se.Event.Digest == digest {
			return se, nil
		}
	}
	return nil, storage.ErrNotFound
}

// State is a StateStore backed by dbm.DB.
type State struct{ db dbm.DB }

func NewState(db dbm.DB) *State { return &State{db: db} }

func (s *State) Get(_ context.Context, prefix string) (state.State, error) {
	b, err := s.db.Get(stateKey(prefix))
	if err != nil {
		return state.State{}, fmt.Errorf("keri: kv state get: %w", err)
	}
	if b == nil {
		return state.State{}, storage.ErrNotFound
	}
	var st state.State
	if err := json.Unmarshal(b, &st); err != nil {
		return state.State{}, fmt.Errorf("keri: kv state unmarshal: %w", err)
	}
	return st, nil
}

func (s *State) Put(_ context.Context, st state.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("keri: kv state marshal: %w", err)
	}
	return s.db.SetSync(stateKey(st.Prefix), b)
}

func (s *State) Delete(_ context.Context, prefix string) error {
	return s.db.DeleteSync(stateKey(prefix))
}

// Receipts is a ReceiptStore backed by dbm.DB.
type Receipts struct{ db dbm.DB }

func NewReceipts(db dbm.DB) *Receipts { return &Receipts{db: db} }

func (r *Receipts) Add(_ context.Context, rc receipt.Receipt) error {
	b, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("keri: kv receipt marshal: %w", err)
	}
	return r.db.SetSync(receiptKey(rc.EventDigest, rc.WitnessPrefix), b)
}

func (r *Receipts) GetByEvent(_ context.Context, eventDigest string) ([]receipt.Receipt, error) {
	start, end := receiptEventRange(eventDigest)
	iter, err := r.db.Iterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("keri: kv receipt iterator: %w", err)
	}
	defer iter.Close()
	var out []receipt.Receipt
	for ; iter.Valid(); iter.Next() {
		var rc receipt.Receipt
		if err := json.Unmarshal(iter.Value(), &rc); err != nil {
			return nil, fmt.Errorf("keri: kv receipt unmarshal: %w", err)
		}
		out = append(out, rc)
	}
	return out, iter.Error()
}

func (r *Receipts) GetOne(_ context.Context, eventDigest, witnessPrefix string) (receipt.Receipt, error) {
	b, err := r.db.Get(receiptKey(eventDigest, witnessPrefix))
	if err != nil {
		return receipt.Receipt{}, fmt.Errorf("keri: kv receipt get: %w", err)
	}
	if b == nil {
		return receipt.Receipt{}, storage.ErrNotFound
	}
	var rc receipt.Receipt
	if err := json.Unmarshal(b, &rc); err != nil {
		return receipt.Receipt{}, fmt.Errorf("keri: kv receipt unmarshal: %w", err)
	}
	return rc, nil
}

func (r *Receipts) Count(ctx context.Context, eventDigest string) (int, error) {
	rs, err := r.GetByEvent(ctx, eventDigest)
	if err != nil {
		return 0, err
	}
	return len(rs), nil
}

// Escrow is an EscrowStore backed by dbm.DB. Unlike KEL/State/Receipts,
// escrow entries are looked up by digest alone from Promote/Remove, so
// those calls scan the escrow keys for the "#"+digest suffix; this
// binding keeps no in-memory index.
type Escrow struct {
	db  dbm.DB
	ttl time.Duration
}

// NewEscrow builds a kv-backed EscrowStore that stamps newly-escrowed
// entries with ttl (ESCROW_TTL). A zero ttl falls back to storage.DefaultTTL.
func NewEscrow(db dbm.DB, ttl time.Duration) *Escrow {
	if ttl <= 0 {
		ttl = storage.DefaultTTL
	}
	return &Escrow{db: db, ttl: ttl}
}

func (e *Escrow) Escrow(_ context.Context, se *event.SignedEvent, reason storage.EscrowReason) error {
	created, ttl, attempts := time.Now(), e.ttl, 0
	if oldKey, existing, err := e.findKeyByDigest(se.Event.Digest); err == nil {
		created, ttl, attempts = existing.Created, existing.TTL, existing.Attempts
		if err := e.db.DeleteSync(oldKey); err != nil {
			return fmt.Errorf("keri: kv escrow delete stale: %w", err)
		}
	} else if err != storage.ErrNotFound {
		return err
	}

	entry := storage.Escrowed{Event: se, Reason: reason, Created: created, TTL: ttl, Attempts: attempts}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("keri: kv escrow marshal: %w", err)
	}
	return e.db.SetSync(escrowKey(se.Event.Prefix, reason, se.Event.Digest), b)
}

func (e *Escrow) ListByPrefix(_ context.Context, prefix string) ([]storage.Escrowed, error) {
	p := escrowPrefix + prefix + ":"
	iter, err := e.db.Iterator([]byte(p), []byte(p+"\xff"))
	if err != nil {
		return nil, fmt.Errorf("keri: kv escrow iterator: %w", err)
	}
	defer iter.Close()
	var out []storage.Escrowed
	for ; iter.Valid(); iter.Next() {
		var esc storage.Escrowed
		if err := json.Unmarshal(iter.Value(), &esc); err != nil {
			return nil, fmt.Errorf("keri: kv escrow unmarshal: %w", err)
		}
		out = append(out, esc)
	}
	return out, iter.Error()
}

func (e *Escrow) ListAll(_ context.Context) ([]storage.Escrowed, error) {
	iter, err := e.db.Iterator([]byte(escrowPrefix), []byte(escrowPrefix+"\xff"))
	if err != nil {
		return nil, fmt.Errorf("keri: kv escrow iterator: %w", err)
	}
	defer iter.Close()
	var out []storage.Escrowed
	for ; iter.Valid(); iter.Next() {
		var esc storage.Escrowed
		if err := json.Unmarshal(iter.Value(), &esc); err != nil {
			return nil, fmt.Errorf("keri: kv escrow unmarshal: %w", err)
		}
		out = append(out, esc)
	}
	return out, iter.Error()
}

func (e *Escrow) findKeyByDigest(digest string) ([]byte, *storage.Escrowed, error) {
	iter, err := e.db.Iterator([]byte(escrowPrefix), []byte(escrowPrefix+"\xff"))
	if err != nil {
		return nil, nil, fmt.Errorf("keri: kv escrow iterator: %w", err)
	}
	defer iter.Close()
	for ; iter.Valid(); iter.Next() {
		if !strings.HasSuffix(string(iter.Key()), "#"+digest) {
			continue
		}
		var esc storage.Escrowed
		if err := json.Unmarshal(iter.Value(), &esc); err != nil {
			return nil, nil, fmt.Errorf("keri: kv escrow unmarshal: %w", err)
		}
		key := append([]byte(nil), iter.Key()...)
		return key, &esc, nil
	}
	return nil, nil, storage.ErrNotFound
}

func (e *Escrow) Promote(_ context.Context, digest string) (*event.SignedEvent, error) {
	key, esc, err := e.findKeyByDigest(digest)
	if err != nil {
		return nil, err
	}
	if err := e.db.DeleteSync(key); err != nil {
		return nil, fmt.Errorf("keri: kv escrow delete: %w", err)
	}
	return esc.Event, nil
}

func (e *Escrow) Remove(_ context.Context, digest string) error {
	key, _, err := e.findKeyByDigest(digest)
	if err != nil {
		return err
	}
	return e.db.DeleteSync(key)
}
