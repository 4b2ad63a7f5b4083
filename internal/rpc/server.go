// Package rpc serves the planning core as newline-delimited JSON-RPC 2.0 for
// hosts that spawn the sidecar as a child process and talk over stdio.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/api"
	"orange-sidecar/internal/eventbus"
)

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// EventNotification is the method name of streamed progress notifications.
const EventNotification = "event"

// maxLineBytes bounds one request line; plan requests may carry a screenshot.
const maxLineBytes = 16 << 20

const serverName = "orange-sidecar"

type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Notification struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// EventSource is the subscribe side of the event bus.
type EventSource interface {
	Subscribe(ctx context.Context, sessionID string) *eventbus.Subscription
}

type Server struct {
	planner  api.Planner
	verifier api.Verifier
	events   EventSource
	schemas  *api.SchemaSet
	version  string
	logger   *slog.Logger

	mu  sync.Mutex
	out *json.Encoder
}

func NewServer(planner api.Planner, verifier api.Verifier, events EventSource, version string) (*Server, error) {
	schemas, err := api.NewSchemaSet()
	if err != nil {
		return nil, fmt.Errorf("failed to build request schemas: %w", err)
	}
	return &Server{
		planner:  planner,
		verifier: verifier,
		events:   events,
		schemas:  schemas,
		version:  version,
		logger:   slog.Default().With("component", "rpc"),
	}, nil
}

// Serve reads one request per line from in and writes responses and
// notifications to out until in is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	s.out = json.NewEncoder(out)
	s.mu.Unlock()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.handleLine(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read requests: %w", err)
	}
	return nil
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.sendError(nil, CodeParseError, "Parse error", err.Error())
		return
	}

	if req.Jsonrpc != "2.0" || req.Method == "" {
		s.sendError(req.ID, CodeInvalidRequest, "Invalid Request", nil)
		return
	}

	s.logger.Debug("request", "method", req.Method, "id", describeID(req.ID))
	result, rpcErr := s.dispatch(ctx, req)

	// requests without an id are notifications and get no reply
	if len(req.ID) == 0 {
		return
	}
	if rpcErr != nil {
		s.send(Response{Jsonrpc: "2.0", ID: req.ID, Error: rpcErr})
		return
	}
	s.send(Response{Jsonrpc: "2.0", ID: req.ID, Result: result})
}

func (s *Server) dispatch(ctx context.Context, req Request) (any, *Error) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(), nil
	case "plan":
		return s.handlePlan(ctx, req.Params)
	case "simulate":
		return s.handleSimulate(ctx, req.Params)
	case "verify":
		return s.handleVerify(ctx, req.Params)
	case "models":
		return s.planner.Models(), nil
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found", Data: req.Method}
	}
}

func (s *Server) handleInitialize() map[string]any {
	return map[string]any{
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": s.version,
		},
		"capabilities": map[string]any{
			"methods":       []string{"initialize", "plan", "simulate", "verify", "models"},
			"notifications": []string{EventNotification},
			"schema_version": map[string]int{
				"min":     agent.SchemaVersionMin,
				"current": agent.SchemaVersionCurrent,
			},
		},
	}
}

// handlePlan streams the plan's progress events as notifications before the
// response.
func (s *Server) handlePlan(ctx context.Context, params json.RawMessage) (any, *Error) {
	var req agent.PlanRequest
	if rpcErr := s.decodeParams(api.SchemaPlanRequest, params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sub := s.events.Subscribe(subCtx, req.SessionID)
	defer sub.Close()

	plan, err := s.planner.Plan(ctx, req)
	if err != nil {
		s.logger.Error("plan failed", "session_id", req.SessionID, "error", err)
		return nil, &Error{Code: CodeInternalError, Message: "Internal error"}
	}

	s.drain(sub)
	return plan, nil
}

// drain forwards events already queued on sub without waiting for more.
func (s *Server) drain(sub *eventbus.Subscription) {
	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			s.send(Notification{Jsonrpc: "2.0", Method: EventNotification, Params: event})
		default:
			return
		}
	}
}

// handleSimulate reports schema problems inside the result, like the HTTP
// route does.
func (s *Server) handleSimulate(ctx context.Context, params json.RawMessage) (any, *Error) {
	if len(params) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: "params are required"}
	}

	var parseErrors []string
	if err := s.schemas.Validate(api.SchemaPlanSimulationRequest, params); err != nil {
		var failure *api.ValidationFailure
		if !errors.As(err, &failure) {
			return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
		}
		parseErrors = failure.Problems
	}

	var req agent.PlanSimulationRequest
	if err := json.Unmarshal(params, &req); err != nil && parseErrors == nil {
		parseErrors = []string{err.Error()}
	}
	return s.planner.Simulate(ctx, req, parseErrors), nil
}

func (s *Server) handleVerify(ctx context.Context, params json.RawMessage) (any, *Error) {
	var req agent.VerifyRequest
	if rpcErr := s.decodeParams(api.SchemaVerifyRequest, params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	for i, action := range req.ActionPlan.Actions {
		req.ActionPlan.Actions[i] = action.WithDefaults()
	}
	return s.verifier.Verify(ctx, req), nil
}

func (s *Server) decodeParams(schema string, params json.RawMessage, v any) *Error {
	if len(params) == 0 {
		return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: "params are required"}
	}

	if err := s.schemas.Validate(schema, params); err != nil {
		var failure *api.ValidationFailure
		if errors.As(err, &failure) {
			return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: failure.Problems}
		}
		return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
	}

	if err := json.Unmarshal(params, v); err != nil {
		return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	return nil
}

func (s *Server) sendError(id json.RawMessage, code int, message string, data any) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	s.send(Response{Jsonrpc: "2.0", ID: id, Error: &Error{Code: code, Message: message, Data: data}})
}

func (s *Server) send(msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.out.Encode(msg); err != nil {
		s.logger.Error("failed to write message", "error", err)
	}
}

// describeID renders a request id for logs.
func describeID(id json.RawMessage) string {
	if len(id) == 0 {
		return "notification"
	}
	return strings.TrimSpace(string(id))
}
