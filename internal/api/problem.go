package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ProblemDetail is an RFC 7807 error body. Every error response uses it.
type ProblemDetail struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Instance string   `json:"instance,omitempty"`
	TraceID  string   `json:"trace_id,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func newProblem(r *http.Request, w http.ResponseWriter, status int, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:     fmt.Sprintf("https://orange.local/errors/%d", status),
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  w.Header().Get(requestIDHeader),
	}
}

func writeProblem(w http.ResponseWriter, problem *ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		slog.Default().Warn("failed to write problem response", "status", problem.Status, "error", err)
	}
}

// WriteError writes a problem response enriched with the request path and id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblem(w, newProblem(r, w, status, detail))
}

func WriteBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	WriteError(w, r, http.StatusBadRequest, detail)
}

// WriteValidationError writes a 422 listing every schema violation.
func WriteValidationError(w http.ResponseWriter, r *http.Request, problems []string) {
	problem := newProblem(r, w, http.StatusUnprocessableEntity, "Request body failed schema validation")
	problem.Errors = problems
	writeProblem(w, problem)
}

func WriteNotFound(w http.ResponseWriter, r *http.Request, detail string) {
	if detail == "" {
		detail = "Resource not found"
	}
	WriteError(w, r, http.StatusNotFound, detail)
}

func WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", r.Method))
}

// WriteTooManyRequests writes a 429 with a Retry-After hint in seconds.
func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSeconds int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSeconds))
	WriteError(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please retry later.")
}

// WriteInternal logs err and writes a generic 500; err never reaches the client.
func WriteInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Default().Error("request failed",
		"path", r.URL.Path,
		"request_id", w.Header().Get(requestIDHeader),
		"error", err,
	)
	WriteError(w, r, http.StatusInternalServerError, "An internal error occurred")
}
