// Package api exposes the planning core over HTTP: JSON request/response
// routes, Server-Sent Events and WebSocket progress streams, and RFC 7807
// error bodies.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/config"
	"orange-sidecar/internal/eventbus"
	"orange-sidecar/internal/observability"
	"orange-sidecar/internal/telemetry"
)

// maxBodyBytes bounds request bodies; plan requests may carry a screenshot.
const maxBodyBytes = 16 << 20

// Planner is the planning core as seen by the transport.
type Planner interface {
	Plan(ctx context.Context, req agent.PlanRequest) (agent.ActionPlan, error)
	Simulate(ctx context.Context, req agent.PlanSimulationRequest, parseErrors []string) agent.PlanSimulationResponse
	Models() agent.ModelsResponse
}

type Verifier interface {
	Verify(ctx context.Context, req agent.VerifyRequest) agent.VerifyResponse
}

// EventSource is the subscribe side of the event bus.
type EventSource interface {
	Subscribe(ctx context.Context, sessionID string) *eventbus.Subscription
	SessionCount() int
}

// Dependencies wires the server to the core. Observability may be nil.
type Dependencies struct {
	Planner       Planner
	Verifier      Verifier
	Events        EventSource
	Telemetry     telemetry.Store
	Observability *observability.Provider
	RateLimit     config.RateLimitSection
}

type Server struct {
	planner   Planner
	verifier  Verifier
	events    EventSource
	telemetry telemetry.Store
	obs       *observability.Provider
	schemas   *SchemaSet
	limiter   *RateLimiter
	logger    *slog.Logger
}

func NewServer(deps Dependencies) (*Server, error) {
	if deps.Planner == nil || deps.Verifier == nil || deps.Events == nil || deps.Telemetry == nil {
		return nil, errors.New("api server requires planner, verifier, events and telemetry")
	}

	schemas, err := NewSchemaSet()
	if err != nil {
		return nil, fmt.Errorf("failed to build request schemas: %w", err)
	}

	return &Server{
		planner:   deps.Planner,
		verifier:  deps.Verifier,
		events:    deps.Events,
		telemetry: deps.Telemetry,
		obs:       deps.Observability,
		schemas:   schemas,
		limiter:   NewRateLimiter(deps.RateLimit.RequestsPerSecond, deps.RateLimit.Burst),
		logger:    slog.Default().With("component", "api"),
	}, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", s.route("health", http.MethodGet, s.handleHealth))
	mux.Handle("/v1/plan", s.route("plan", http.MethodPost, s.handlePlan))
	mux.Handle("/v1/plan/simulate", s.route("plan.simulate", http.MethodPost, s.handleSimulate))
	mux.Handle("/v1/models", s.route("models", http.MethodGet, s.handleModels))
	mux.Handle("/v1/verify", s.route("verify", http.MethodPost, s.handleVerify))
	mux.Handle("/v1/telemetry", s.track("telemetry", http.HandlerFunc(s.handleTelemetry)))
	mux.Handle("/v1/events/{session_id}", s.route("events.sse", http.MethodGet, s.handleEvents))
	mux.Handle("/v1/ws/{session_id}", s.route("events.ws", http.MethodGet, s.handleWebSocket))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, fmt.Sprintf("No route for %s", r.URL.Path))
	})

	var h http.Handler = mux
	h = s.limiter.Middleware(h)
	h = Recover(h)
	h = Logging(s.logger)(h)
	h = RequestID(h)
	return h
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// route restricts a handler to one method and tracks it as an operation.
func (s *Server) route(name, method string, h http.HandlerFunc) http.Handler {
	return s.track(name, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			WriteMethodNotAllowed(w, r)
			return
		}
		h(w, r)
	}))
}

// track records a span and RED metrics for every request; 5xx responses
// count as errors.
func (s *Server) track(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, finish := s.obs.TrackOperation(r.Context(), "http."+name,
			attribute.String("http.route", r.Pattern),
			attribute.String("http.method", r.Method),
		)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		var err error
		if rec.status >= http.StatusInternalServerError {
			err = fmt.Errorf("%s responded %d", name, rec.status)
		}
		finish(err)
	})
}
