package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/receipt"
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

func TestKELAppendRejectsDuplicateSn(t *testing.T) {
	ctx := context.Background()
	kel := NewKEL()
	ev := buildIcp(t)
	se := &event.SignedEvent{Event: ev}

	require.NoError(t, kel.Append(ctx, se))
	err := kel.Append(ctx, se)
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestKELGetLatestAndRange(t *testing.T) {
	ctx := context.Background()
	kel := NewKEL()
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

func TestKELGetMissingReturnsNotFound(t *testing.T) {
	kel := NewKEL()
	_, err := kel.Get(context.Background(), "Dprefix", 0)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStatePutAndGet(t *testing.T) {
	ctx := context.Background()
	st := NewState()
	require.NoError(t, st.Put(ctx, state.State{Prefix: "Dprefix", Sn: 3}))

	got, err := st.Get(ctx, "Dprefix")
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Sn)

	require.NoError(t, st.Delete(ctx, "Dprefix"))
	_, err = st.Get(ctx, "Dprefix")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReceiptsDedupeByWitness(t *testing.T) {
	ctx := context.Background()
	rs := NewReceipts()
	r := receipt.Receipt{EventDigest: "Edigest", WitnessPrefix: "Bwitness", Signature: "0Asig1"}
	require.NoError(t, rs.Add(ctx, r))
	r.Signature = "0Asig2"
	require.NoError(t, rs.Add(ctx, r))

	count, err := rs.Count(ctx, "Edigest")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := rs.GetOne(ctx, "Edigest", "Bwitness")
	require.NoError(t, err)
	require.Equal(t, "0Asig2", got.Signature)
}

func TestEscrowPromoteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	esc := NewEscrow(0)
	ev := buildIcp(t)
	se := &event.SignedEvent{Event: ev}

	require.NoError(t, esc.Escrow(ctx, se, storage.ReasonPartiallySigned))
	all, err := esc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	promoted, err := esc.Promote(ctx, ev.Digest)
	require.NoError(t, err)
	require.Equal(t, ev.Digest, promoted.Event.Digest)

	_, err = esc.Promote(ctx, ev.Digest)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
