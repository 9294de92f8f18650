package sig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(Ed25519Verifier{})
	r.Register(Secp256k1Verifier{})
	return r
}

func TestEd25519SignAndVerify(t *testing.T) {
	signer, err := GenerateEd25519Signer()
	require.NoError(t, err)

	msg := []byte(`{"v":"KERI10JSON000000_",...}`)
	qsig, err := signer.Sign(msg)
	require.NoError(t, err)

	reg := newTestRegistry()
	ok, err := reg.VerifyQb64(signer.PublicKeyQb64(), msg, qsig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEd25519RejectsTamperedMessage(t *testing.T) {
	signer, err := GenerateEd25519Signer()
	require.NoError(t, err)

	msg := []byte("original event bytes")
	qsig, err := signer.Sign(msg)
	require.NoError(t, err)

	reg := newTestRegistry()
	ok, err := reg.VerifyQb64(signer.PublicKeyQb64(), []byte("tampered event bytes"), qsig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEd25519RejectsWrongKey(t *testing.T) {
	signer, err := GenerateEd25519Signer()
	require.NoError(t, err)
	other, err := GenerateEd25519Signer()
	require.NoError(t, err)

	msg := []byte("event bytes")
	qsig, err := signer.Sign(msg)
	require.NoError(t, err)

	reg := newTestRegistry()
	ok, err := reg.VerifyQb64(other.PublicKeyQb64(), msg, qsig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUnknownScheme(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.VerifyQb64("Znotarealcode", []byte("msg"), "Zsig")
	require.ErrorIs(t, err, ErrUnknownScheme)
}

func TestDeterministicSeedProducesSameKey(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	a, err := Ed25519SignerFromSeed(seed)
	require.NoError(t, err)
	b, err := Ed25519SignerFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, a.PublicKeyQb64(), b.PublicKeyQb64())
}
