package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/townyadvanced/townylog/internal/audit"
	"github.com/townyadvanced/townylog/internal/money"
	"github.com/townyadvanced/townylog/internal/townylog"
)

// handleHealth reports liveness and the facade state. It is unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.logs.Status()
	status := "ok"
	code := http.StatusOK
	if st.State != "ready" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"state":   st.State,
		"version": s.version,
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.logs.Status())
}

type debugRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleSetDebug toggles the debug channel at runtime.
func (s *Server) handleSetDebug(w http.ResponseWriter, r *http.Request) {
	var req debugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	if err := s.logs.SetDebug(*req.Enabled); err != nil {
		s.writeFacadeError(w, err)
		return
	}
	s.logger.Info("debug channel toggled via API",
		"enabled", *req.Enabled,
		"subject", subjectFrom(r.Context()),
	)
	writeJSON(w, http.StatusOK, s.logs.Status())
}

// handleCommit republishes the routing table.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if err := s.logs.Commit(); err != nil {
		s.writeFacadeError(w, err)
		return
	}
	s.logger.Info("routing table committed via API", "subject", subjectFrom(r.Context()))
	writeJSON(w, http.StatusOK, s.logs.Status())
}

// handleListMoney pages the money transaction index.
// Query parameters: limit, offset, kind, party, reason, since, until
// (RFC 3339).
func (s *Server) handleListMoney(w http.ResponseWriter, r *http.Request) {
	if s.money == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "money index is not enabled")
		return
	}

	filter, err := parseMoneyFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := s.money.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing money transactions", "error", err)
		writeInternalError(w, "failed to list money transactions")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseMoneyFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		Kind:   money.Kind(q.Get("kind")),
		Party:  q.Get("party"),
		Reason: q.Get("reason"),
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
	}
	if v := q.Get("since"); v != "" {
		if f.Since, err = time.Parse(time.RFC3339, v); err != nil {
			return f, errors.New("since must be an RFC 3339 timestamp")
		}
	}
	if v := q.Get("until"); v != "" {
		if f.Until, err = time.Parse(time.RFC3339, v); err != nil {
			return f, errors.New("until must be an RFC 3339 timestamp")
		}
	}
	return f, nil
}

// writeFacadeError maps facade lifecycle errors to HTTP statuses.
func (s *Server) writeFacadeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, townylog.ErrNotInitialized), errors.Is(err, townylog.ErrClosed):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		s.logger.Error("logging facade operation failed", "error", err)
		writeInternalError(w, err.Error())
	}
}
