package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"bank-dashboard/pkg/export"
	"bank-dashboard/pkg/link"
	"bank-dashboard/pkg/transaction"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxRequestBody bounds link callback bodies.
const maxRequestBody = 64 << 10

type stateResponse struct {
	IsLoading    bool                 `json:"is_loading"`
	Generation   uint64               `json:"generation"`
	Transactions []transaction.Record `json:"transactions"`
	Groups       []transaction.Group  `json:"groups"`
}

type successRequest struct {
	PublicToken string `json:"public_token"`
}

type exitRequest struct {
	Error string `json:"error"`
}

func (s *Server) currentState() stateResponse {
	state := s.store.State()
	return stateResponse{
		IsLoading:    state.IsLoading,
		Generation:   state.Generation,
		Transactions: state.Records,
		Groups:       transaction.GroupByAccount(state.Records),
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentState())
}

// handleRefresh reloads transactions. A failed refresh still answers 200:
// the dashboard simply shows an empty list.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_ = s.store.Refresh(detach(r))
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records := s.store.Records()
	s.metrics.RecordExport(len(records))
	export.Download(w, export.Encode(records))
}

func (s *Server) handleLinkToken(w http.ResponseWriter, r *http.Request) {
	session, err := s.flow.Start(r.Context())
	if errors.Is(err, link.ErrNoLinkToken) {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if err != nil {
		s.logger.Error("failed to start link flow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLinkSuccess(w http.ResponseWriter, r *http.Request) {
	var req successRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.PublicToken == "" {
		writeError(w, http.StatusBadRequest, errors.New("public_token is required"))
		return
	}

	if err := s.widget.Complete(detach(r), mux.Vars(r)["session"], req.PublicToken); err != nil {
		s.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleLinkExit(w http.ResponseWriter, r *http.Request) {
	var req exitRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var exitErr error
	if req.Error != "" {
		exitErr = errors.New(req.Error)
	}

	if err := s.widget.Abort(detach(r), mux.Vars(r)["session"], exitErr); err != nil {
		s.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "exited",
	})
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, link.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.Error("link session callback failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err)
}

// handleHealth returns a simple health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleStatus returns detailed status information.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.store.State()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "running",
		"timestamp":        time.Now().Unix(),
		"uptime":           time.Since(s.startTime).String(),
		"is_loading":       state.IsLoading,
		"generation":       state.Generation,
		"transactions":     len(state.Records),
		"pending_sessions": s.widget.Pending(),
	})
}

// detach keeps work on shared state running after the client hangs up.
// Backend calls made under it are bounded only by backend.timeout.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}
