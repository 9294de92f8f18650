package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/sig"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/threshold"
)

func newTestRegistry() *sig.Registry {
	r := sig.NewRegistry()
	r.Register(sig.Ed25519Verifier{})
	return r
}

func sign(t *testing.T, signer *sig.Ed25519Signer, ev *event.Event, index int) event.IndexedSignature {
	t.Helper()
	qsig, err := signer.Sign(ev.Raw)
	require.NoError(t, err)
	return event.IndexedSignature{Index: index, Signature: qsig}
}

func TestValidateInceptionValid(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	ev, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)

	se := &event.SignedEvent{Event: ev, Signatures: []event.IndexedSignature{sign(t, signer, ev, 0)}}

	reg := newTestRegistry()
	res, err := Validate(reg, se, nil, Strict)
	require.NoError(t, err)
	require.Equal(t, Valid, res.Outcome)
}

func TestValidateInceptionPartiallySigned(t *testing.T) {
	signerA, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)
	signerB, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	ev, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signerA.PublicKeyQb64(), signerB.PublicKeyQb64()},
		SigningThresh: []byte(`"2"`),
	}, nil)
	require.NoError(t, err)

	se := &event.SignedEvent{Event: ev, Signatures: []event.IndexedSignature{sign(t, signerA, ev, 0)}}

	reg := newTestRegistry()
	res, err := Validate(reg, se, nil, Strict)
	require.NoError(t, err)
	require.Equal(t, PartiallySigned, res.Outcome)
	require.Equal(t, 1, res.Have)
	require.Equal(t, 2, res.Need)
}

func TestValidateInceptionDuplicateWhenStateExists(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	ev, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)
	se := &event.SignedEvent{Event: ev, Signatures: []event.IndexedSignature{sign(t, signer, ev, 0)}}

	st := state.State{Prefix: "Dprefix", Sn: 0, LatestDigest: ev.Digest}
	reg := newTestRegistry()
	res, err := Validate(reg, se, &st, Strict)
	require.NoError(t, err)
	require.Equal(t, Duplicate, res.Outcome)
}

func TestValidateIxnOutOfOrder(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	icp, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)
	st := state.State{
		Prefix:           icp.Prefix,
		Sn:               0,
		LatestDigest:     icp.Digest,
		SigningKeys:      icp.SigningKeys,
		SigningThreshold: parseThresh(t, `"1"`),
	}

	ixn, err := event.Build(event.KED{
		Prefix:      icp.Prefix,
		Sn:          "2",
		Type:        event.Ixn,
		PriorDigest: icp.Digest,
	}, nil)
	require.NoError(t, err)
	se := &event.SignedEvent{Event: ixn, Signatures: []event.IndexedSignature{sign(t, signer, ixn, 0)}}

	reg := newTestRegistry()
	res, err := Validate(reg, se, &st, Strict)
	require.NoError(t, err)
	require.Equal(t, OutOfOrder, res.Outcome)
	require.Equal(t, uint64(1), res.ExpectedSn)
	require.Equal(t, uint64(2), res.ActualSn)
}

func TestValidateRejectsPriorDigestMismatch(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	icp, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)
	st := state.State{
		Prefix:           icp.Prefix,
		Sn:               0,
		LatestDigest:     icp.Digest,
		SigningKeys:      icp.SigningKeys,
		SigningThreshold: parseThresh(t, `"1"`),
	}

	ixn, err := event.Build(event.KED{
		Prefix:      icp.Prefix,
		Sn:          "1",
		Type:        event.Ixn,
		PriorDigest: "Ewrongdigest00000000000000000000000000000",
	}, nil)
	require.NoError(t, err)
	se := &event.SignedEvent{Event: ixn, Signatures: []event.IndexedSignature{sign(t, signer, ixn, 0)}}

	reg := newTestRegistry()
	_, err = Validate(reg, se, &st, Strict)
	require.ErrorIs(t, err, ErrPriorDigestMismatch)
}

func TestValidateLenientSkipsCryptoVerification(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	ev, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)

	// Garbage signature text — would fail Strict, passes Lenient because
	// only the index is checked.
	se := &event.SignedEvent{Event: ev, Signatures: []event.IndexedSignature{{Index: 0, Signature: "not-a-real-signature"}}}

	reg := newTestRegistry()
	res, err := Validate(reg, se, nil, Lenient)
	require.NoError(t, err)
	require.Equal(t, Valid, res.Outcome)
}

func TestValidateDuplicateDelegatedInceptionIsNotMissingDelegator(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	ev, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Dip,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
		Delegator:     "Ddelegator",
	}, nil)
	require.NoError(t, err)
	se := &event.SignedEvent{Event: ev, Signatures: []event.IndexedSignature{sign(t, signer, ev, 0)}}

	// State already recorded for this prefix and no delegator seal — per
	// spec.md:117 this is Duplicate regardless of delegation.
	st := state.State{Prefix: "Dprefix", Sn: 0, LatestDigest: ev.Digest}
	reg := newTestRegistry()
	res, err := Validate(reg, se, &st, Strict)
	require.NoError(t, err)
	require.Equal(t, Duplicate, res.Outcome)
}

func TestValidateOutOfOrderDelegatedEventIsNotMissingDelegator(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	icp, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)
	st := state.State{
		Prefix:           icp.Prefix,
		Sn:               0,
		LatestDigest:     icp.Digest,
		SigningKeys:      icp.SigningKeys,
		SigningThreshold: parseThresh(t, `"1"`),
	}

	// Drt at sn=2 while state is still at sn=0 (expected sn=1), and no
	// delegator seal — this must classify OutOfOrder, not MissingDelegator.
	drt, err := event.Build(event.KED{
		Prefix:      icp.Prefix,
		Sn:          "2",
		Type:        event.Drt,
		PriorDigest: icp.Digest,
		Delegator:   "Ddelegator",
	}, nil)
	require.NoError(t, err)
	se := &event.SignedEvent{Event: drt, Signatures: []event.IndexedSignature{sign(t, signer, drt, 0)}}

	reg := newTestRegistry()
	res, err := Validate(reg, se, &st, Strict)
	require.NoError(t, err)
	require.Equal(t, OutOfOrder, res.Outcome)
	require.Equal(t, uint64(1), res.ExpectedSn)
	require.Equal(t, uint64(2), res.ActualSn)
}

func TestValidateDelegatedRotMissingDelegatorOnlyWhenOtherwiseValid(t *testing.T) {
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	icp, err := event.Build(event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	}, nil)
	require.NoError(t, err)
	st := state.State{
		Prefix:           icp.Prefix,
		Sn:               0,
		LatestDigest:     icp.Digest,
		SigningKeys:      icp.SigningKeys,
		SigningThreshold: parseThresh(t, `"1"`),
	}

	// Correctly sequenced, fully signed Drt with no delegator seal — this
	// is the only shape that should surface MissingDelegator.
	drt, err := event.Build(event.KED{
		Prefix:        icp.Prefix,
		Sn:            "1",
		Type:          event.Drt,
		PriorDigest:   icp.Digest,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
		Delegator:     "Ddelegator",
	}, nil)
	require.NoError(t, err)
	se := &event.SignedEvent{Event: drt, Signatures: []event.IndexedSignature{sign(t, signer, drt, 0)}}

	reg := newTestRegistry()
	res, err := Validate(reg, se, &st, Strict)
	require.NoError(t, err)
	require.Equal(t, MissingDelegator, res.Outcome)
}

func parseThresh(t *testing.T, raw string) threshold.Threshold {
	t.Helper()
	kt, err := threshold.Parse([]byte(raw))
	require.NoError(t, err)
	return kt
}
