// Package health serves the solver's operator-facing HTTP surface:
// liveness for orchestration probes and a status snapshot of the last
// few iterations for manual inspection. It replaces the teacher's
// trader-facing order-intake API, which is out of scope for an
// off-chain solver that never accepts orders directly.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/latch-protocol/solver/internal/auditlog"
	"github.com/latch-protocol/solver/internal/settlement"
)

// Status is a point-in-time snapshot of the solver's iteration loop.
type Status struct {
	LastIterationAt time.Time `json:"last_iteration_at"`
	LastBatchID     string    `json:"last_batch_id,omitempty"`
	LastOutcome     string    `json:"last_outcome,omitempty"`
	IterationCount  uint64    `json:"iteration_count"`
	AuditRoot       string    `json:"audit_root,omitempty"`
	FailedCount     int       `json:"failed_settlement_count"`
}

// Server exposes /healthz, /status and /failed over HTTP, plus a POST
// /failed/clear that empties the failed-settlement queue, and tracks the
// counters /status reports. The main loop calls RecordIteration after
// each pass that discovered a settleable batch; a pass with no settleable
// batch or a failed discovery is not counted.
type Server struct {
	mu     sync.RWMutex
	status Status

	audit  *auditlog.Log
	failed *settlement.FailedQueue
	router *mux.Router
}

// New constructs a health Server backed by the given audit log and
// failed-settlement queue.
func New(audit *auditlog.Log, failed *settlement.FailedQueue) *Server {
	s := &Server{audit: audit, failed: failed}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/failed", s.handleFailed).Methods(http.MethodGet)
	s.router.HandleFunc("/failed/clear", s.handleFailedClear).Methods(http.MethodPost)
	return s
}

// Handler returns the configured router for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RecordIteration updates the status snapshot after one solve iteration.
func (s *Server) RecordIteration(batchID, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastIterationAt = time.Now()
	s.status.LastBatchID = batchID
	s.status.LastOutcome = outcome
	s.status.IterationCount++
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snapshot := s.status
	s.mu.RUnlock()

	if s.audit != nil {
		if root, ok, err := s.audit.Root(); err == nil && ok {
			snapshot.AuditRoot = root
		}
	}
	if s.failed != nil {
		snapshot.FailedCount = len(s.failed.Snapshot())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snapshot)
}

func (s *Server) handleFailed(w http.ResponseWriter, r *http.Request) {
	var items []settlement.FailedSettlement
	if s.failed != nil {
		items = s.failed.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(items)
}

func (s *Server) handleFailedClear(w http.ResponseWriter, r *http.Request) {
	var cleared int
	if s.failed != nil {
		cleared = s.failed.Clear()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"cleared": cleared})
}
