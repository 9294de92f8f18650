// Copyright 2025 Certen Protocol
//
// Document bindings for the four keri storage interfaces. Each record
// is stored as a single JSON blob under a "data" field rather than
// mapped field-by-field the way the teacher's StatusSnapshot/
// AuditTrailEntry types are — those types are hand-shaped for a fixed
// UI read model, while a KEL entry's shape is owned by pkg/keri/event
// and should not be duplicated into a second schema here.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/receipt"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	kstorage "github.com/seriouscoderone/kerihost/pkg/keri/storage"
)

func docFromJSON(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": string(b)}, nil
}

func jsonFromDoc(doc map[string]any, out any) error {
	raw, ok := doc["data"].(string)
	if !ok {
		return fmt.Errorf("keri: firestore document missing data field")
	}
	return json.Unmarshal([]byte(raw), out)
}

// KEL is a KELStore backed by Firestore, documents at
// kels/{prefix}/events/{sn}.
type KEL struct{ c *Client }

func NewKEL(c *Client) *KEL { return &KEL{c: c} }

func (k *KEL) eventsCollection(prefix string) (*gcpfirestore.CollectionRef, error) {
	col, err := k.c.collection(fmt.Sprintf("kels/%s/events", prefix))
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (k *KEL) Append(ctx context.Context, se *event.SignedEvent) error {
	col, err := k.eventsCollection(se.Event.Prefix)
	if err != nil {
		return err
	}
	docID := fmt.Sprintf("%020d", se.Event.SnUint)
	doc := col.Doc(docID)
	data, err := docFromJSON(se)
	if err != nil {
		return fmt.Errorf("keri: marshal signed event: %w", err)
	}
	_, err = doc.Create(ctx, data)
	if status, ok := grpcAlreadyExists(err); ok && status {
		return kstorage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("keri: firestore kel append: %w", err)
	}
	return nil
}

func (k *KEL) Get(ctx context.Context, prefix string, sn uint64) (*event.SignedEvent, error) {
	col, err := k.eventsCollection(prefix)
	if err != nil {
		return nil, err
	}
	snap, err := col.Doc(fmt.Sprintf("%020d", sn)).Get(ctx)
	if isNotFound(err) {
		return nil, kstorage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keri: firestore kel get: %w", err)
	}
	var se event.SignedEvent
	if err := jsonFromDoc(snap.Data(), &se); err != nil {
		return nil, err
	}
	return &se, nil
}

func (k *KEL) GetRange(ctx context.Context, prefix string, start uint64, end *uint64) ([]*event.SignedEvent, error) {
	col, err := k.eventsCollection(prefix)
	if err != nil {
		return nil, err
	}
	q := col.OrderBy(gcpfirestore.DocumentID, gcpfirestore.Asc).
		StartAt(fmt.Sprintf("%020d", start))
	if end != nil {
		q = q.EndAt(fmt.Sprintf("%020d", *end))
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*event.SignedEvent
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("keri: firestore kel range: %w", err)
		}
		var se event.SignedEvent
		if err := jsonFromDoc(snap.Data(), &se); err != nil {
			return nil, err
		}
		out = append(out, &se)
	}
	return out, nil
}

func (k *KEL) GetLatest(ctx context.Context, prefix string) (*event.SignedEvent, error) {
	col, err := k.eventsCollection(prefix)
	if err != nil {
		return nil, err
	}
	iter := col.OrderBy(gcpfirestore.DocumentID, gcpfirestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, kstorage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keri: firestore kel latest: %w", err)
	}
	var se event.SignedEvent
	if err := jsonFromDoc(snap.Data(), &se); err != nil {
		return nil, err
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
	return nil, kstorage.ErrNotFound
}

// State is a StateStore backed by Firestore, documents at states/{prefix}.
type State struct{ c *Client }

func NewState(c *Client) *State { return &State{c: c} }

func (s *State) Get(ctx context.Context, prefix string) (state.State, error) {
	col, err := s.c.collection("states")
	if err != nil {
		return state.State{}, err
	}
	snap, err := col.Doc(prefix).Get(ctx)
	if isNotFound(err) {
		return state.State{}, kstorage.ErrNotFound
	}
	if err != nil {
		return state.State{}, fmt.Errorf("keri: firestore state get: %w", err)
	}
	var st state.State
	if err := jsonFromDoc(snap.Data(), &st); err != nil {
		return state.State{}, err
	}
	return st, nil
}

func (s *State) Put(ctx context.Context, st state.State) error {
	col, err := s.c.collection("states")
	if err != nil {
		return err
	}
	data, err := docFromJSON(st)
	if err != nil {
		return err
	}
	_, err = col.Doc(st.Prefix).Set(ctx, data)
	if err != nil {
		return fmt.Errorf("keri: firestore state put: %w", err)
	}
	return nil
}

func (s *State) Delete(ctx context.Context, prefix string) error {
	col, err := s.c.collection("states")
	if err != nil {
		return err
	}
	_, err = col.Doc(prefix).Delete(ctx)
	if err != nil {
		return fmt.Errorf("keri: firestore state delete: %w", err)
	}
	return nil
}

// Receipts is a ReceiptStore backed by Firestore, documents at
// receipts/{eventDigest}/witnesses/{witnessPrefix}.
type Receipts struct{ c *Client }

func NewReceipts(c *Client) *Receipts { return &Receipts{c: c} }

func (r *Receipts) witnessesCollection(eventDigest string) (*gcpfirestore.CollectionRef, error) {
	return r.c.collection(fmt.Sprintf("receipts/%s/witnesses", eventDigest))
}

func (r *Receipts) Add(ctx context.Context, rc receipt.Receipt) error {
	col, err := r.witnessesCollection(rc.EventDigest)
	if err != nil {
		return err
	}
	data, err := docFromJSON(rc)
	if err != nil {
		return err
	}
	_, err = col.Doc(rc.WitnessPrefix).Set(ctx, data)
	if err != nil {
		return fmt.Errorf("keri: firestore receipt add: %w", err)
	}
	return nil
}

func (r *Receipts) GetByEvent(ctx context.Context, eventDigest string) ([]receipt.Receipt, error) {
	col, err := r.witnessesCollection(eventDigest)
	if err != nil {
		return nil, err
	}
	iter := col.Documents(ctx)
	defer iter.Stop()
	var out []receipt.Receipt
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("keri: firestore receipt list: %w", err)
		}
		var rc receipt.Receipt
		if err := jsonFromDoc(snap.Data(), &rc); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, nil
}

func (r *Receipts) GetOne(ctx context.Context, eventDigest, witnessPrefix string) (receipt.Receipt, error) {
	col, err := r.witnessesCollection(eventDigest)
	if err != nil {
		return receipt.Receipt{}, err
	}
	snap, err := col.Doc(witnessPrefix).Get(ctx)
	if isNotFound(err) {
		return receipt.Receipt{}, kstorage.ErrNotFound
	}
	if err != nil {
		return receipt.Receipt{}, fmt.Errorf("keri: firestore receipt get: %w", err)
	}
	var rc receipt.Receipt
	if err := jsonFromDoc(snap.Data(), &rc); err != nil {
		return receipt.Receipt{}, err
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

// Escrow is an EscrowStore backed by Firestore, documents at escrow/{digest}.
type Escrow struct {
	c   *Client
	ttl time.Duration
}

// NewEscrow builds a Firestore-backed EscrowStore that stamps newly-escrowed
// entries with ttl (ESCROW_TTL). A zero ttl falls back to kstorage.DefaultTTL.
func NewEscrow(c *Client, ttl time.Duration) *Escrow {
	if ttl <= 0 {
		ttl = kstorage.DefaultTTL
	}
	return &Escrow{c: c, ttl: ttl}
}

func (e *Escrow) Escrow(ctx context.Context, se *event.SignedEvent, reason kstorage.EscrowReason) error {
	col, err := e.c.collection("escrow")
	if err != nil {
		return err
	}
	created, ttl, attempts := time.Now(), e.ttl, 0
	if snap, getErr := col.Doc(se.Event.Digest).Get(ctx); getErr == nil {
		var existing kstorage.Escrowed
		if jsonErr := jsonFromDoc(snap.Data(), &existing); jsonErr == nil {
			created, ttl, attempts = existing.Created, existing.TTL, existing.Attempts
		}
	} else if !isNotFound(getErr) {
		return fmt.Errorf("keri: firestore escrow lookup: %w", getErr)
	}
	entry := kstorage.Escrowed{Event: se, Reason: reason, Created: created, TTL: ttl, Attempts: attempts}
	data, err := docFromJSON(entry)
	if err != nil {
		return err
	}
	data["prefix"] = se.Event.Prefix
	_, err = col.Doc(se.Event.Digest).Set(ctx, data)
	if err != nil {
		return fmt.Errorf("keri: firestore escrow: %w", err)
	}
	return nil
}

func (e *Escrow) list(ctx context.Context, q *gcpfirestore.Query) ([]kstorage.Escrowed, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []kstorage.Escrowed
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("keri: firestore escrow list: %w", err)
		}
		var esc kstorage.Escrowed
		if err := jsonFromDoc(snap.Data(), &esc); err != nil {
			return nil, err
		}
		out = append(out, esc)
	}
	return out, nil
}

func (e *Escrow) ListByPrefix(ctx context.Context, prefix string) ([]kstorage.Escrowed, error) {
	col, err := e.c.collection("escrow")
	if err != nil {
		return nil, err
	}
	q := col.Where("prefix", "==", prefix).Query
	return e.list(ctx, &q)
}

func (e *Escrow) ListAll(ctx context.Context) ([]kstorage.Escrowed, error) {
	col, err := e.c.collection("escrow")
	if err != nil {
		return nil, err
	}
	q := col.Query
	return e.list(ctx, &q)
}

func (e *Escrow) Promote(ctx context.Context, digest string) (*event.SignedEvent, error) {
	col, err := e.c.collection("escrow")
	if err != nil {
		return nil, err
	}
	snap, err := col.Doc(digest).Get(ctx)
	if isNotFound(err) {
		return nil, kstorage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keri: firestore escrow get: %w", err)
	}
	var esc kstorage.Escrowed
	if err := jsonFromDoc(snap.Data(), &esc); err != nil {
		return nil, err
	}
	if _, err := col.Doc(digest).Delete(ctx); err != nil {
		return nil, fmt.Errorf("keri: firestore escrow delete: %w", err)
	}
	return esc.Event, nil
}

func (e *Escrow) Remove(ctx context.Context, digest string) error {
	col, err := e.c.collection("escrow")
	if err != nil {
		return err
	}
	if _, err := col.Doc(digest).Delete(ctx); err != nil {
		return fmt.Errorf("keri: firestore escrow remove: %w", err)
	}
	return nil
}
