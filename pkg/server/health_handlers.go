// Copyright 2025 Certen Protocol
//
// Liveness/readiness probe, grounded on the teacher's HealthStatus
// tracking in main.go and pkg/consensus/health_monitor.go's
// connected/disconnected component reporting.
package server

import (
	"log"
	"net/http"

	"github.com/seriouscoderone/kerihost/pkg/keri/witness"
)

// HealthHandlers serves GET /health.
type HealthHandlers struct {
	witness *witness.Witness
	logger  *log.Logger
}

func NewHealthHandlers(w *witness.Witness, logger *log.Logger) *HealthHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[HealthAPI] ", log.LstdFlags)
	}
	return &HealthHandlers{witness: w, logger: logger}
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// HandleHealth probes the storage binding with a cheap sweep call and
// reports "ok" or "degraded".
func (h *HealthHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_, err := h.witness.Sweep(r.Context())
	resp := healthResponse{Status: "ok", Storage: "connected"}
	status := http.StatusOK
	if err != nil {
		h.logger.Printf("health check storage probe failed: %v", err)
		resp.Status = "degraded"
		resp.Storage = "disconnected"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
