package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleInceptionKED() KED {
	return KED{
		Prefix:        "DtestPrefixQb64",
		Sn:            "0",
		Type:          Icp,
		SigningKeys:   []string{"DkeyOneQb64"},
		SigningThresh: []byte(`"1"`),
		Witnesses:     []string{"BwitnessOneQb64"},
		WitnessThresh: []byte(`"1"`),
	}
}

func TestBuildThenParseRoundTrip(t *testing.T) {
	ev, err := Build(sampleInceptionKED(), nil)
	require.NoError(t, err)
	require.Equal(t, Icp, ev.Type)
	require.Equal(t, uint64(0), ev.SnUint)

	reparsed, err := Parse(ev.Raw)
	require.NoError(t, err)
	require.Equal(t, ev.Raw, reparsed.Raw)
	require.Equal(t, ev.Digest, reparsed.Digest)
}

func TestParseRejectsTamperedDigest(t *testing.T) {
	ev, err := Build(sampleInceptionKED(), nil)
	require.NoError(t, err)

	tampered, ok := replaceFieldValue(ev.Raw, "i", []byte("DtamperedPrefixXX"))
	require.True(t, ok)

	_, err = Parse(tampered)
	require.ErrorIs(t, err, ErrInvalidEvent)
}

func TestParseRejectsBadVersionString(t *testing.T) {
	ev, err := Build(sampleInceptionKED(), nil)
	require.NoError(t, err)
	bad, ok := replaceFieldValue(ev.Raw, "v", []byte("KERI10JSON000000_"))
	require.True(t, ok)
	_, err = Parse(bad)
	require.Error(t, err)
}

func TestParseSnRejectsLeadingZero(t *testing.T) {
	_, err := parseSn("01")
	require.Error(t, err)
	n, err := parseSn("0")
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
	n, err = parseSn("a")
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)
}

func TestEventTypePredicates(t *testing.T) {
	require.True(t, Icp.IsEstablishment())
	require.True(t, Icp.IsInception())
	require.False(t, Icp.IsDelegated())
	require.True(t, Dip.IsDelegated())
	require.False(t, Ixn.IsEstablishment())
}
