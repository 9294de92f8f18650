// Copyright 2025 Certen Protocol
//
// HTTP handlers for the witness's ingest and query surface, grounded on
// pkg/server/attestation_handlers.go's NewXHandlers(deps, logger)
// shape and its writeJSONError/json.NewEncoder response style.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/seriouscoderone/kerihost/pkg/keri/event"
	"github.com/seriouscoderone/kerihost/pkg/keri/processor"
	"github.com/seriouscoderone/kerihost/pkg/keri/state"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
	"github.com/seriouscoderone/kerihost/pkg/keri/validate"
	"github.com/seriouscoderone/kerihost/pkg/keri/witness"
)

// WitnessHandlers serves POST /process and POST /query.
type WitnessHandlers struct {
	witness *witness.Witness
	metrics *Metrics
	logger  *log.Logger
}

func NewWitnessHandlers(w *witness.Witness, metrics *Metrics, logger *log.Logger) *WitnessHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[WitnessAPI] ", log.LstdFlags)
	}
	return &WitnessHandlers{witness: w, metrics: metrics, logger: logger}
}

// processRequest is this core's non-CESR adaptation of "raw CESR bytes
// (may be base64-transport-encoded)": the exact sized/digested event
// bytes travel base64-encoded under Raw, and controller signatures
// travel alongside rather than as a trailing CESR attachment group,
// since this codec does not parse the CESR counter-framed attachment
// stream (see DESIGN.md).
type processRequest struct {
	Raw        string                   `json:"raw"`
	Signatures []event.IndexedSignature `json:"signatures"`
}

type processResponse struct {
	Status            string `json:"status"`
	Prefix            string `json:"prefix,omitempty"`
	Sn                uint64 `json:"sn,omitempty"`
	Digest            string `json:"digest,omitempty"`
	Reason            string `json:"reason,omitempty"`
	Confidence        string `json:"confidence,omitempty"`
	WitnessesSeen     int    `json:"witnessesSeen,omitempty"`
	WitnessesRequired int    `json:"witnessesRequired,omitempty"`
	AsOf              string `json:"asOf"`
	Error             string `json:"error,omitempty"`
}

// HandleProcess handles POST /process.
func (h *WitnessHandlers) HandleProcess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.metrics != nil {
		defer h.metrics.ObserveRequest("/process", start)
	}
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProcessError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Raw)
	if err != nil {
		writeProcessError(w, "raw is not valid base64", http.StatusBadRequest)
		return
	}

	res, err := h.witness.ProcessBytes(r.Context(), raw, req.Signatures)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrInvalidEvent),
			errors.Is(err, validate.ErrPriorDigestMismatch),
			errors.Is(err, processor.ErrUnauthorizedWitness):
			h.logger.Printf("[%s] process rejected: %v", RequestIDFromContext(r.Context()), err)
			writeProcessError(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Printf("[%s] process failed: %v", RequestIDFromContext(r.Context()), err)
			writeProcessError(w, "internal error processing event", http.StatusInternalServerError)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.EventsProcessed.WithLabelValues(outcomeLabel(res.Outcome)).Inc()
	}

	switch res.Outcome {
	case processor.Accepted:
		resp := processResponse{
			Status:     "accepted",
			Prefix:     res.State.Prefix,
			Sn:         res.State.Sn,
			Digest:     res.State.LatestDigest,
			Confidence: string(state.LocalOnly),
			AsOf:       nowRFC3339(),
		}
		if enriched, enrichErr := h.witness.GetState(r.Context(), res.State.Prefix); enrichErr == nil && enriched.Metadata != nil {
			resp.Confidence = string(enriched.Metadata.Confidence)
			resp.WitnessesSeen = enriched.Metadata.WitnessesSeen
			resp.WitnessesRequired = enriched.Metadata.WitnessesRequired
		}
		writeJSON(w, http.StatusOK, resp)
	case processor.EscrowedOutcome:
		writeJSON(w, http.StatusAccepted, processResponse{
			Status:     "escrowed",
			Reason:     string(res.Reason),
			Confidence: string(state.LocalOnly),
			AsOf:       nowRFC3339(),
		})
	case processor.DuplicateOutcome:
		writeJSON(w, http.StatusOK, processResponse{Status: "duplicate", AsOf: nowRFC3339()})
	}
}

type queryRequest struct {
	QueryType   string  `json:"query_type"`
	Prefix      string  `json:"prefix,omitempty"`
	EventDigest string  `json:"event_digest,omitempty"`
	StartSn     *uint64 `json:"start_sn,omitempty"`
	EndSn       *uint64 `json:"end_sn,omitempty"`
}

// HandleQuery handles POST /query.
func (h *WitnessHandlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.metrics != nil {
		defer h.metrics.ObserveRequest("/query", start)
	}
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch req.QueryType {
	case "state":
		h.queryState(w, r, req)
	case "kel":
		h.queryKEL(w, r, req)
	case "receipts":
		h.queryReceipts(w, r, req)
	default:
		writeJSONError(w, "query_type must be one of state|kel|receipts", http.StatusBadRequest)
	}
}

func (h *WitnessHandlers) queryState(w http.ResponseWriter, r *http.Request, req queryRequest) {
	if req.Prefix == "" {
		writeJSONError(w, "prefix is required for query_type=state", http.StatusBadRequest)
		return
	}
	st, err := h.witness.GetState(r.Context(), req.Prefix)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSONError(w, "prefix not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Printf("query state failed: %v", err)
		writeJSONError(w, "internal error querying state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *WitnessHandlers) queryKEL(w http.ResponseWriter, r *http.Request, req queryRequest) {
	if req.Prefix == "" {
		writeJSONError(w, "prefix is required for query_type=kel", http.StatusBadRequest)
		return
	}
	start := uint64(0)
	if req.StartSn != nil {
		start = *req.StartSn
	}
	events, err := h.witness.GetKEL(r.Context(), req.Prefix, start, req.EndSn)
	if err != nil {
		h.logger.Printf("query kel failed: %v", err)
		writeJSONError(w, "internal error querying kel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *WitnessHandlers) queryReceipts(w http.ResponseWriter, r *http.Request, req queryRequest) {
	if req.EventDigest == "" {
		writeJSONError(w, "event_digest is required for query_type=receipts", http.StatusBadRequest)
		return
	}
	receipts, err := h.witness.GetReceipts(r.Context(), req.EventDigest)
	if err != nil {
		h.logger.Printf("query receipts failed: %v", err)
		writeJSONError(w, "internal error querying receipts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func outcomeLabel(o processor.Outcome) string {
	switch o {
	case processor.Accepted:
		return "accepted"
	case processor.EscrowedOutcome:
		return "escrowed"
	case processor.DuplicateOutcome:
		return "duplicate"
	default:
		return "unknown"
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeProcessError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, processResponse{Error: msg, AsOf: nowRFC3339()})
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
