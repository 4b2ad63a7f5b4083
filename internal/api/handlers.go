package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/telemetry"
)

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type telemetryAccepted struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type telemetryPage struct {
	Events []telemetry.Event `json:"events"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.events.SessionCount(),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req agent.PlanRequest
	if !s.decode(w, r, SchemaPlanRequest, &req) {
		return
	}

	plan, err := s.planner.Plan(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("plan abandoned by client", "session_id", req.SessionID)
			return
		}
		WriteInternal(w, r, fmt.Errorf("plan failed: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

// handleSimulate reports schema problems in the response body instead of
// rejecting the request; only malformed JSON is an error.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var parseErrors []string
	if err := s.schemas.Validate(SchemaPlanSimulationRequest, raw); err != nil {
		var failure *ValidationFailure
		if !errors.As(err, &failure) {
			WriteBadRequest(w, r, err.Error())
			return
		}
		parseErrors = failure.Problems
	}

	var req agent.PlanSimulationRequest
	if err := json.Unmarshal(raw, &req); err != nil && parseErrors == nil {
		parseErrors = []string{err.Error()}
	}

	s.writeJSON(w, http.StatusOK, s.planner.Simulate(r.Context(), req, parseErrors))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.planner.Models())
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req agent.VerifyRequest
	if !s.decode(w, r, SchemaVerifyRequest, &req) {
		return
	}

	for i, action := range req.ActionPlan.Actions {
		req.ActionPlan.Actions[i] = action.WithDefaults()
	}
	s.writeJSON(w, http.StatusOK, s.verifier.Verify(r.Context(), req))
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.ingestTelemetry(w, r)
	case http.MethodGet:
		s.recentTelemetry(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		WriteMethodNotAllowed(w, r)
	}
}

func (s *Server) ingestTelemetry(w http.ResponseWriter, r *http.Request) {
	var event telemetry.Event
	if !s.decode(w, r, SchemaTelemetryEvent, &event) {
		return
	}

	count, err := s.telemetry.Append(r.Context(), event)
	if err != nil {
		WriteInternal(w, r, fmt.Errorf("telemetry append failed: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, telemetryAccepted{Status: "accepted", Count: count})
}

func (s *Server) recentTelemetry(w http.ResponseWriter, r *http.Request) {
	limit := telemetry.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteValidationError(w, r, []string{fmt.Sprintf("limit: %q is not an integer", raw)})
			return
		}
		limit = n
	}

	events, err := s.telemetry.Recent(r.Context(), telemetry.ClampLimit(limit))
	if err != nil {
		WriteInternal(w, r, fmt.Errorf("telemetry read failed: %w", err))
		return
	}
	if events == nil {
		events = []telemetry.Event{}
	}
	s.writeJSON(w, http.StatusOK, telemetryPage{Events: events})
}

// readBody reads the bounded request body, writing a 400 on failure.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		WriteBadRequest(w, r, "Failed to read request body")
		return nil, false
	}
	return raw, true
}

// decode validates the body against the named schema and unmarshals it into
// v. Malformed JSON is a 400, schema violations a 422.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, v any) bool {
	raw, ok := s.readBody(w, r)
	if !ok {
		return false
	}

	if err := s.schemas.Validate(schema, raw); err != nil {
		var failure *ValidationFailure
		if errors.As(err, &failure) {
			WriteValidationError(w, r, failure.Problems)
			return false
		}
		WriteBadRequest(w, r, err.Error())
		return false
	}

	if err := json.Unmarshal(raw, v); err != nil {
		WriteBadRequest(w, r, fmt.Sprintf("Request body does not match %s: %v", schema, err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "status", status, "error", err)
	}
}
