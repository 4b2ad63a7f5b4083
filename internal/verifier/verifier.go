package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/debug"
)

// Corrective action ids
const (
	RetryActionID       = "retry_1"
	RetryVerifyActionID = "retry_verify_1"
)

const (
	minObservableDelta = 0.01
	strongChangeDelta  = 0.05
)

// Evaluate judges an execution outcome. It holds no state: identical
// requests always produce identical responses.
func Evaluate(req agent.VerifyRequest) agent.VerifyResponse {
	delta := ContextDelta(req.BeforeContext, req.AfterContext)

	resp := agent.VerifyResponse{
		SchemaVersion:     agent.SchemaVersionCurrent,
		SessionID:         req.SessionID,
		CorrectiveActions: []agent.Action{},
	}

	if req.ExecutionResult == agent.ExecutionSuccess && delta >= minObservableDelta {
		resp.Status = agent.VerifySuccess
		resp.Confidence = 0.75
		if delta > strongChangeDelta {
			resp.Confidence = 0.9
		}
		resp.Reason = fmt.Sprintf("Context changed (delta=%.3f)", delta)
		return resp
	}

	resp.Status = agent.VerifyFailure
	actions := req.ActionPlan.Actions

	switch req.ExecutionResult {
	case agent.ExecutionFailure, agent.ExecutionPartial:
		resp.Confidence = 0.55
		resp.Reason = "Execution did not complete successfully"
		if len(actions) > 0 {
			resp.CorrectiveActions = append(resp.CorrectiveActions, actions[len(actions)-1].WithID(RetryActionID))
		}
	case agent.ExecutionSuccess:
		resp.Confidence = 0.45
		resp.Reason = fmt.Sprintf("No observable UI change detected (delta=%.3f)", delta)
		if len(actions) > 0 {
			resp.CorrectiveActions = append(resp.CorrectiveActions, actions[len(actions)-1].WithID(RetryVerifyActionID))
		}
	default:
		resp.Confidence = 0.55
		resp.Reason = "Execution did not complete successfully"
	}

	if req.Reason != "" {
		resp.Reason = req.Reason
	}

	return resp
}

// Verifier wraps Evaluate with logging and the optional session trace.
type Verifier struct {
	debugLogger *debug.DebugLogger
	logger      *slog.Logger
}

func NewVerifier(debugLogger *debug.DebugLogger) *Verifier {
	return &Verifier{
		debugLogger: debugLogger,
		logger:      slog.Default().With("component", "verifier"),
	}
}

func (v *Verifier) Verify(ctx context.Context, req agent.VerifyRequest) agent.VerifyResponse {
	resp := Evaluate(req)

	v.logger.DebugContext(ctx, "verification complete",
		"session_id", req.SessionID,
		"execution_result", req.ExecutionResult,
		"status", resp.Status,
		"corrective_actions", len(resp.CorrectiveActions),
	)

	if v.debugLogger.IsEnabled() {
		ids := make([]string, 0, len(resp.CorrectiveActions))
		for _, a := range resp.CorrectiveActions {
			ids = append(ids, a.ID)
		}
		err := v.debugLogger.LogDecision(req.SessionID, debug.DecisionEntry{
			Timestamp:    time.Now(),
			Component:    "verifier",
			Decision:     fmt.Sprintf("status=%s", resp.Status),
			Reasoning:    resp.Reason,
			Alternatives: ids,
			Confidence:   resp.Confidence,
		})
		if err != nil {
			v.logger.Warn("debug trace write failed", "session_id", req.SessionID, "error", err)
		}
	}

	return resp
}
