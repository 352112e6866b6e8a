// ABOUTME: HTTP front-end boundary for the gatekeeper pipeline
// ABOUTME: POST /v1/query runs Handle; stats, health, and metrics are read-only

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/osintkit/gatekeeper/internal/gatekeeper"
	"github.com/osintkit/gatekeeper/internal/metrics"
	"github.com/osintkit/gatekeeper/internal/store"
)

// QueryRequest is the JSON request body for POST /v1/query.
type QueryRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text"`
}

// QueryResponse is the JSON response for POST /v1/query.
type QueryResponse struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`

	Kind      string     `json:"kind,omitempty"`
	Value     string     `json:"value,omitempty"`
	IsNew     bool       `json:"is_new,omitempty"`
	Hits      int64      `json:"hits,omitempty"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// StatsResponse is the JSON response for GET /v1/stats.
type StatsResponse struct {
	Queries     *store.QueryStats `json:"queries"`
	TopEntities []*EntityResponse `json:"top_entities"`
}

// EntityResponse is one dedup-cache row in stats output.
type EntityResponse struct {
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	Hits      int64     `json:"hits"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Server hosts the gatekeeper behind an HTTP boundary.
type Server struct {
	router *mux.Router
	gk     *gatekeeper.Gatekeeper
	store  store.Store
	logger *slog.Logger
}

// New creates a Server and registers its routes. The metrics instance
// may be nil, in which case no metrics endpoint is mounted.
func New(gk *gatekeeper.Gatekeeper, st store.Store, m *metrics.Metrics, metricsPath string, logger *slog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		gk:     gk,
		store:  st,
		logger: logger.With("component", "server"),
	}

	s.router.HandleFunc("/v1/query", s.handleQuery).Methods("POST")
	s.router.HandleFunc("/v1/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if m != nil {
		s.router.Handle(metricsPath, m.Handler()).Methods("GET")
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == 0 {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	role := store.Role(req.Role)
	if req.Role == "" {
		role = store.RoleUser
	}
	if !role.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	verdict, err := s.gk.Handle(r.Context(), req.UserID, role, req.Text, time.Now())
	if err != nil {
		var storageErr *gatekeeper.StorageError
		if errors.As(err, &storageErr) {
			s.logger.Error("storage failure handling query", "user_id", req.UserID, "error", err)
			s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		s.logger.Error("failed to handle query", "user_id", req.UserID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := QueryResponse{Blocked: verdict.Blocked}
	if verdict.Blocked {
		resp.Reason = string(verdict.Reason)
		// Blocked verdicts are expected outcomes, not faults: 429 with
		// the gate named in the body.
		s.writeJSON(w, http.StatusTooManyRequests, resp)
		return
	}

	resp.Kind = string(verdict.Kind)
	resp.Value = verdict.Value
	resp.IsNew = verdict.IsNew
	resp.Hits = verdict.Hits
	resp.FirstSeen = &verdict.FirstSeen
	resp.LastSeen = &verdict.LastSeen
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.store.GetQueryStats(ctx)
	if err != nil {
		s.logger.Error("failed to read query stats", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	top, err := s.store.TopEntities(ctx, 20)
	if err != nil {
		s.logger.Error("failed to read top entities", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	resp := StatsResponse{Queries: stats, TopEntities: make([]*EntityResponse, 0, len(top))}
	for _, e := range top {
		resp.TopEntities = append(resp.TopEntities, &EntityResponse{
			Kind:      e.Kind,
			Value:     e.Value,
			Hits:      e.Hits,
			FirstSeen: e.FirstSeen,
			LastSeen:  e.LastSeen,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
