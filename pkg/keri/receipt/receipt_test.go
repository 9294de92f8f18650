package receipt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/sig"
)

func newTestRegistry() *sig.Registry {
	r := sig.NewRegistry()
	r.Register(sig.Ed25519Verifier{})
	return r
}

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

func TestGenerateThenVerify(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	ev := buildIcp(t)
	r, err := Generate(ev, signer)
	require.NoError(t, err)
	require.Equal(t, ev.Digest, r.EventDigest)
	require.Equal(t, ev.Prefix, r.EventPrefix)
	require.Equal(t, signer.PublicKeyQb64(), r.WitnessPrefix)

	reg := newTestRegistry()
	ok, err := Verify(reg, ev, r)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsMismatchedDigest(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	ev := buildIcp(t)
	r, err := Generate(ev, signer)
	require.NoError(t, err)
	r.EventDigest = "Ewrongdigest00000000000000000000000000000"

	reg := newTestRegistry()
	_, err = Verify(reg, ev, r)
	require.Error(t, err)
}
