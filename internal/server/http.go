package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groblegark/tally/internal/apply"
	"github.com/groblegark/tally/internal/events"
	"github.com/groblegark/tally/internal/metrics"
	"github.com/groblegark/tally/internal/model"
)

// maxApplyBodyBytes caps the apply request body.
const maxApplyBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered. Every
// route except /v1/health and /metrics requires a signed request.
func (s *LedgerServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/items/{key}/apply", s.handleApply)
	mux.HandleFunc("GET /v1/items/{key}/credit", s.requireTenant(s.handleGetCredit))
	mux.HandleFunc("GET /v1/items/{key}/proposals", s.requireTenant(s.handleGetProposals))
	mux.HandleFunc("GET /v1/items/{key}/events", s.requireTenant(s.handleGetEvents))
	mux.HandleFunc("GET /v1/items/{key}/verify", s.requireTenant(s.handleVerify))
	mux.HandleFunc("GET /v1/events/stream", s.requireTenant(s.handleEventStream))
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return withRecovery(s.logger, withRequestLog(s.logger, mux))
}

// handleApply handles POST /v1/items/{key}/apply. Authentication happens
// inside the coordinator: the signature covers the raw body.
func (s *LedgerServer) handleApply(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxApplyBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.CodeValidationFailed, "read request body: "+err.Error())
		return
	}

	o := s.coordinator.Apply(r.Context(), r, body, key)
	metrics.AppliesTotal.WithLabelValues(string(o.State)).Inc()

	switch o.State {
	case apply.StateDone:
		s.publishAndBroadcast(r.Context(), events.TopicCreditAppended, o.Tenant,
			events.CreditAppended{Tenant: o.Tenant, Event: o.Event})
	case apply.StateDuplicateComplete:
		metrics.DuplicateHitsTotal.Inc()
	default:
		if o.Tenant != "" {
			s.publishAndBroadcast(r.Context(), events.TopicApplyFailed, o.Tenant,
				events.ApplyFailed{Tenant: o.Tenant, WorkItemKey: key, Code: o.Code, Reason: o.Reason})
		}
		if o.State == apply.StateChainCorrupted {
			s.publishAndBroadcast(r.Context(), events.TopicChainCorrupted, o.Tenant,
				events.ChainCorrupted{Tenant: o.Tenant, WorkItemKey: key, Reason: o.Reason})
		}
	}

	writeJSON(w, statusForOutcome(o.State), o.Response)
}

// handleGetCredit handles GET /v1/items/{key}/credit. Optional query params:
// since (RFC 3339) and limit (recent event count).
func (s *LedgerServer) handleGetCredit(w http.ResponseWriter, r *http.Request, tenant string) {
	key := r.PathValue("key")

	var since *time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, model.CodeValidationFailed,
				"since must be RFC 3339: "+err.Error())
			return
		}
		since = &t
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, model.CodeValidationFailed,
				"limit must be a non-negative integer")
			return
		}
		limit = n
	}

	summary, err := s.query.IssueCredit(r.Context(), tenant, key, since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeStorageFailure, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleGetProposals handles GET /v1/items/{key}/proposals.
func (s *LedgerServer) handleGetProposals(w http.ResponseWriter, r *http.Request, _ string) {
	if s.proposals == nil {
		writeError(w, http.StatusServiceUnavailable, model.CodeMutateFailed,
			"no proposal source configured")
		return
	}
	set, err := s.proposals.Fetch(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadGateway, model.CodeMutateFailed,
			"fetch proposals: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// handleGetEvents handles GET /v1/items/{key}/events: the raw chain in
// append order.
func (s *LedgerServer) handleGetEvents(w http.ResponseWriter, r *http.Request, tenant string) {
	key := r.PathValue("key")
	chain, err := s.ledger.Chain(r.Context(), tenant, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeStorageFailure, err.Error())
		return
	}
	if chain == nil {
		chain = []*model.CreditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workItemKey": key,
		"events":      chain,
	})
}

// handleVerify handles GET /v1/items/{key}/verify. A failed verification
// returns 409 and emits a chain corruption event.
func (s *LedgerServer) handleVerify(w http.ResponseWriter, r *http.Request, tenant string) {
	key := r.PathValue("key")
	res, err := s.ledger.Verify(r.Context(), tenant, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.CodeStorageFailure, err.Error())
		return
	}
	if !res.OK {
		s.publishAndBroadcast(r.Context(), events.TopicChainCorrupted, tenant,
			events.ChainCorrupted{
				Tenant:      tenant,
				WorkItemKey: key,
				BadEventID:  res.BadEventID,
				Reason:      res.Reason,
			})
		writeJSON(w, http.StatusConflict, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHealth handles GET /v1/health.
func (s *LedgerServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response carrying the taxonomy code.
func writeError(w http.ResponseWriter, status int, code model.ErrorCode, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": string(code)})
}
