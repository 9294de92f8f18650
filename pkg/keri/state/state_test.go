package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
)

func buildIcp(t *testing.T, nextKeyDigest string) *event.Event {
	t.Helper()
	ev, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{"Dkey0"},
		SigningThresh: []byte(`"1"`),
		NextKeyDigest: nextKeyDigest,
		Witnesses:     []string{"Bwitness0"},
		WitnessThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)
	return ev
}

func buildIxn(t *testing.T, prior *event.Event, snHex string) *event.Event {
	t.Helper()
	ev, err := event.Build(event.KED{
		Prefix:      prior.Prefix,
		Sn:          snHex,
		Type:        event.Ixn,
		PriorDigest: prior.Digest,
	}, nil)
	require.NoError(t, err)
	return ev
}

func TestFromInceptionTransferable(t *testing.T) {
	icp := buildIcp(t, "Enextkeydigest0000000000000000000000000000")
	st, err := FromInception(icp)
	require.NoError(t, err)
	require.Equal(t, uint64(0), st.Sn)
	require.Equal(t, icp.Digest, st.LatestDigest)
	require.True(t, st.Transferable)
	require.Equal(t, []string{"Dkey0"}, st.SigningKeys)
}

func TestFromInceptionNonTransferable(t *testing.T) {
	icp := buildIcp(t, "")
	st, err := FromInception(icp)
	require.NoError(t, err)
	require.False(t, st.Transferable)
}

func TestApplyIxnAdvancesSnOnly(t *testing.T) {
	icp := buildIcp(t, "Enextkeydigest0000000000000000000000000000")
	st, err := FromInception(icp)
	require.NoError(t, err)

	ixn := buildIxn(t, icp, "1")
	next, err := Apply(st, ixn)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next.Sn)
	require.Equal(t, ixn.Digest, next.LatestDigest)
	require.Equal(t, st.SigningKeys, next.SigningKeys)
}

func TestApplyRotWithNoWitnessFieldsPreservesPriorWitnesses(t *testing.T) {
	icp := buildIcp(t, "Enextkeydigest0000000000000000000000000000")
	st, err := FromInception(icp)
	require.NoError(t, err)
	require.Equal(t, []string{"Bwitness0"}, st.Witnesses)

	rot, err := event.Build(event.KED{
		Prefix:        icp.Prefix,
		Sn:            "1",
		Type:          event.Rot,
		PriorDigest:   icp.Digest,
		SigningKeys:   []string{"Dkey1"},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)

	next, err := Apply(st, rot)
	require.NoError(t, err)
	require.Equal(t, []string{"Bwitness0"}, next.Witnesses, "a rotation with no b/ba/br fields must not empty the witness set")
}

func TestApplyRotRejectsInconsistentWitnessSet(t *testing.T) {
	icp := buildIcp(t, "Enextkeydigest0000000000000000000000000000")
	st, err := FromInception(icp)
	require.NoError(t, err)

	rot, err := event.Build(event.KED{
		Prefix:        icp.Prefix,
		Sn:            "1",
		Type:          event.Rot,
		PriorDigest:   icp.Digest,
		SigningKeys:   []string{"Dkey1"},
		SigningThresh: []byte(`"1"`),
		WitnessesAdd:  []string{"Bwitness1"},
		Witnesses:     []string{"Bwitness1"},
		WitnessThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)

	_, err = Apply(st, rot)
	require.ErrorIs(t, err, errInvalidWitnessSet)
}

func TestApplyRejectsSequenceGap(t *testing.T) {
	icp := buildIcp(t, "Enextkeydigest0000000000000000000000000000")
	st, err := FromInception(icp)
	require.NoError(t, err)

	// Build an sn=2 event but it requires sn=1 first; prior digest also
	// won't match, but sequence is checked first.
	bogus, err := event.Build(event.KED{
		Prefix:      icp.Prefix,
		Sn:          "2",
		Type:        event.Ixn,
		PriorDigest: icp.Digest,
	}, nil)
	require.NoError(t, err)

	_, err = Apply(st, bogus)
	require.ErrorIs(t, err, ErrSequenceMismatch)
}

func TestApplyRejectsPriorDigestMismatch(t *testing.T) {
	icp := buildIcp(t, "Enextkeydigest0000000000000000000000000000")
	st, err := FromInception(icp)
	require.NoError(t, err)

	bogus, err := event.Build(event.KED{
		Prefix:      icp.Prefix,
		Sn:          "1",
		Type:        event.Ixn,
		PriorDigest: "Ewrongdigest00000000000000000000000000000",
	}, nil)
	require.NoError(t, err)

	_, err = Apply(st, bogus)
	require.ErrorIs(t, err, ErrPriorDigestMismatch)
}
