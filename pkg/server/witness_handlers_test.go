package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seriouscoderone/kerihost/pkg/keri/escrow"
	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/processor"
	"github.com/seriouscoderone/kerihost/pkg/keri/sig"
	"github.com/seriouscoderone/kerihost/pkg/keri/witness"
	"github.com/seriouscoderone/kerihost/pkg/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *sig.Ed25519Signer) {
	t.Helper()
	signer, err := sig.GenerateEd25519Signer()
	require.NoError(t, err)

	registry := sig.NewRegistry()
	registry.Register(sig.Ed25519Verifier{})

	kel := memory.NewKEL()
	st := memory.NewState()
	esc := memory.NewEscrow(0)
	rec := memory.NewReceipts()

	proc := processor.New(processor.Deps{KEL: kel, State: st, Escrow: esc, Registry: registry})
	reconciler := escrow.New(escrow.Deps{KEL: kel, State: st, Receipts: rec, Escrow: esc, Processor: proc}, escrow.DefaultConfig())

	w := witness.New(witness.Deps{
		KEL:        kel,
		State:      st,
		Receipts:   rec,
		Escrow:     esc,
		Processor:  proc,
		Reconciler: reconciler,
		WitnessAID: signer.PublicKeyQb64(),
		PublicURL:  "https://witness.example.com",
	})

	return New(w, NewMetrics(), nil), signer
}

func encodeProcessRequest(t *testing.T, signer *sig.Ed25519Signer, ked event.KED) []byte {
	t.Helper()
	ev, err := event.Build(ked, nil)
	require.NoError(t, err)
	qsig, err := signer.Sign(ev.Raw)
	require.NoError(t, err)

	body, err := json.Marshal(processRequest{
		Raw:        base64.StdEncoding.EncodeToString(ev.Raw),
		Signatures: []event.IndexedSignature{{Index: 0, Signature: qsig}},
	})
	require.NoError(t, err)
	return body
}

func TestHandleProcessAcceptsInception(t *testing.T) {
	srv, signer := newTestServer(t)
	body := encodeProcessRequest(t, signer, event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	})

	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp processResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "accepted", resp.Status)
	require.Equal(t, "Dprefix", resp.Prefix)
}

func TestHandleProcessRejectsMalformedBase64(t *testing.T) {
	srv, _ := newTestServer(t)
	body := []byte(`{"raw":"not-base64!!","signatures":[]}`)

	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryStateAfterInception(t *testing.T) {
	srv, signer := newTestServer(t)
	body := encodeProcessRequest(t, signer, event.KED{
		Prefix:        "Dprefix",
		Sn:            "0",
		Type:          event.Icp,
		SigningKeys:   []string{signer.PublicKeyQb64()},
		SigningThresh: []byte(`"1"`),
	})
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	qbody, err := json.Marshal(map[string]string{"query_type": "state", "prefix": "Dprefix"})
	require.NoError(t, err)
	qreq := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(qbody))
	qrec := httptest.NewRecorder()
	srv.mux.ServeHTTP(qrec, qreq)

	require.Equal(t, http.StatusOK, qrec.Code)
	require.Contains(t, qrec.Body.String(), `"Prefix":"Dprefix"`)
}

func TestHandleOOBIControllerRooted(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/oobi/Dsomecontroller", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://witness.example.com/oobi/Dsomecontroller")
}

func TestHandleIntroduce(t *testing.T) {
	srv, signer := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/introduce", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), signer.PublicKeyQb64())
}
