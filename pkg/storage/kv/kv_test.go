package kv

import (
	"context"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/require"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
)

func buildIcp(t *testing.T) *event.Event {
	t.Helper()
	ev, err := event.Build(event.KED{
		Prefix:      "Dprefix",
		Sn:          "0",
		Type:        event.Icp,
		SigningKeys: []string{"Dkey0"},
	}, nil)
	require.NoError(t, err)
	return ev
}

func TestKELAppendAndGet(t *testing.T) {
	ctx := context.Background()
	kel := NewKEL(dbm.NewMemDB())
	ev := buildIcp(t)
	se := &event.SignedEvent{Event: ev}

	require.NoError(t, kel.Append(ctx, se))
	err := kel.Append(ctx, se)
	require.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := kel.Get(ctx, ev.Prefix, 0)
	require.NoError(t, err)
	require.Equal(t, ev.Digest, got.Event.Digest)
}

func TestKELRangeOrdering(t *testing.T) {
	ctx := context.Background()
	kel := NewKEL(dbm.NewMemDB())
	icp := buildIcp(t)
	require.NoError(t, kel.Append(ctx, &event.SignedEvent{Event: icp}))

	ixn, err := event.Build(event.KED{
		Prefix:      icp.Prefix,
		Sn:          "1",
		Type:        event.Ixn,
		PriorDigest: icp.Digest,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, kel.Append(ctx, &event.SignedEvent{Event: ixn}))

	latest, err := kel.GetLatest(ctx, icp.Prefix)
	require.NoError(t, err)
	require.Equal(t, ixn.Digest, latest.Event.Digest)

	all, err := kel.GetRange(ctx, icp.Prefix, 0, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, uint64(0), all[0].Event.SnUint)
	require.Equal(t, uint64(1), all[1].Event.SnUint)
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewState(dbm.NewMemDB())
	require.NoError(t, s.Put(ctx, state.State{Prefix: "Dprefix", Sn: 5}))

	got, err := s.Get(ctx, "Dprefix")
	require.NoError(t, err)
	require.Equal(t, uint64(5), got.Sn)
}

func TestEscrowPromoteByDigest(t *testing.T) {
	ctx := context.Background()
	esc := NewEscrow(dbm.NewMemDB(), 0)
	ev := buildIcp(t)
	se := &event.SignedEvent{Event: ev}

	require.NoError(t, esc.Escrow(ctx, se, storage.ReasonOutOfOrder))
	promoted, err := esc.Promote(ctx, ev.Digest)
	require.NoError(t, err)
	require.Equal(t, ev.Digest, promoted.Event.Digest)

	_, err = esc.Promote(ctx, ev.Digest)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
