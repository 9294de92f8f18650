// Copyright 2025 Certen Protocol
//
// Package server wires the Witness Facade to net/http, grounded on the
// teacher's main.go's mux-and-http.Server wiring and pkg/server's
// handler-struct convention (NewXHandlers(deps, logger), a mux.Handle
// call per route).
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/seriouscoderone/kerihost/pkg/keri/witness"
)

// Server bundles the HTTP handlers the witness exposes.
type Server struct {
	mux    http.Handler
	logger *log.Logger
}

// requestIDHeader carries the request ID assigned by withRequestID, so a
// caller can correlate its request with witness-side logs.
const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// withRequestID stamps every request with a fresh uuid.New() request ID,
// matching the uuid.New() call sites throughout pkg/attestation and
// pkg/batch, and returns it to the caller via requestIDHeader.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New()
		w.Header().Set(requestIDHeader, id.String())
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request ID withRequestID assigned to
// ctx, or the zero UUID if none was assigned.
func RequestIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(requestIDKey{}).(uuid.UUID)
	return id
}

// New builds a Server with every route registered.
func New(w *witness.Witness, metrics *Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags)
	}

	wh := NewWitnessHandlers(w, metrics, logger)
	oh := NewOOBIHandlers(w, logger)
	hh := NewHealthHandlers(w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/process", wh.HandleProcess)
	mux.HandleFunc("/query", wh.HandleQuery)
	mux.HandleFunc("/introduce", oh.HandleIntroduce)
	mux.HandleFunc("/oobi/", oh.HandleOOBI)
	mux.HandleFunc("/health", hh.HandleHealth)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	return &Server{mux: withRequestID(mux), logger: logger}
}

// HTTPServer returns a *http.Server bound to addr and this mux, matching
// the teacher's httpServer := &http.Server{Addr: ..., Handler: mux}
// construction in main.go.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Shutdown gracefully stops srv, matching main.go's 30-second shutdown
// timeout.
func Shutdown(ctx context.Context, srv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
