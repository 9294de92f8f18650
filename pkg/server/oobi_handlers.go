// Copyright 2025 Certen Protocol
package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/seriouscoderone/kerihost/pkg/keri/witness"
)

// OOBIHandlers serves GET /introduce, /oobi/{aid}, and
// /oobi/{aid}/witness/{witness}, per spec.md §6.
type OOBIHandlers struct {
	witness *witness.Witness
	logger  *log.Logger
}

func NewOOBIHandlers(w *witness.Witness, logger *log.Logger) *OOBIHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[OOBIAPI] ", log.LstdFlags)
	}
	return &OOBIHandlers{witness: w, logger: logger}
}

// HandleIntroduce handles GET /introduce: this witness announces its own
// AID and OOBI, grounded on original_source's witness self-registration
// behavior (spec.md §10 item 4).
func (h *OOBIHandlers) HandleIntroduce(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	aid, oobi := h.witness.Introduce()
	writeJSON(w, http.StatusOK, map[string]string{"aid": aid, "oobi": oobi})
}

// HandleOOBI handles GET /oobi/{aid} and /oobi/{aid}/witness/{witness}.
func (h *OOBIHandlers) HandleOOBI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/oobi/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONError(w, "aid is required", http.StatusBadRequest)
		return
	}
	aid := parts[0]

	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, map[string]string{
			"aid":  aid,
			"oobi": witness.ControllerOOBI(h.witness.PublicURL(), aid),
		})
		return
	}

	if len(parts) == 3 && parts[1] == "witness" {
		witnessPrefix := parts[2]
		writeJSON(w, http.StatusOK, map[string]string{
			"aid":     aid,
			"witness": witnessPrefix,
			"oobi":    witness.WitnessOOBI(h.witness.PublicURL(), aid, witnessPrefix),
		})
		return
	}

	writeJSONError(w, "malformed oobi path", http.StatusBadRequest)
}
