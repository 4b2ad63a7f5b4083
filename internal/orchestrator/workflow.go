package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/config"
	"orange-sidecar/internal/debug"
)

// Lifecycle events published for every plan
const (
	EventPlanningStarted   = "planning_started"
	EventPlanningGenerated = "planning_generated"
	EventPlanningCompleted = "planning_completed"
)

const (
	guidanceHighRisk = "Plan contains irreversible actions; confirm before running."
	guidanceMedium   = "Plan submits input; confirm before running."
	guidanceFallback = "No specific rule matched; transcript will be typed into the focused field."
)

// GuidanceStatus reports whether the synthesizer found vendor guidance.
type GuidanceStatus interface {
	GuidanceLoaded() bool
}

type PlanOrchestrator struct {
	synthesizer agent.Synthesizer
	publisher   agent.Publisher
	router      *ModelRouter
	planner     config.PlannerSection
	debugLogger *debug.DebugLogger
	logger      *slog.Logger
	now         func() time.Time
}

func NewPlanOrchestrator(synthesizer agent.Synthesizer, publisher agent.Publisher, planner config.PlannerSection, debugLogger *debug.DebugLogger) *PlanOrchestrator {
	return &PlanOrchestrator{
		synthesizer: synthesizer,
		publisher:   publisher,
		router:      NewModelRouter(planner),
		planner:     planner,
		debugLogger: debugLogger,
		logger:      slog.Default().With("component", "planner"),
		now:         time.Now,
	}
}

// Plan synthesizes actions for the request and publishes the three lifecycle
// events in order. A cancelled context is only honoured before work starts.
func (po *PlanOrchestrator) Plan(ctx context.Context, req agent.PlanRequest) (agent.ActionPlan, error) {
	if err := ctx.Err(); err != nil {
		return agent.ActionPlan{}, err
	}

	po.publish(req.SessionID, EventPlanningStarted, "Planning actions from transcript", 10)

	result := po.synthesizer.PlanActions(ctx, agent.SynthesisInput{
		Transcript:    req.Transcript,
		ActiveApp:     req.ActiveAppName(),
		AXTreeSummary: req.AXTreeSummary,
	})

	po.publish(req.SessionID, EventPlanningGenerated, fmt.Sprintf("Generated %d actions", len(result.Actions)), 65)

	risk, confirm := ClassifyRisk(result.Actions)

	plan := agent.ActionPlan{
		SchemaVersion:        agent.SchemaVersionCurrent,
		SessionID:            req.SessionID,
		Actions:              result.Actions,
		Confidence:           result.Confidence,
		RiskLevel:            risk,
		RequiresConfirmation: confirm,
		Summary:              result.Summary,
	}

	route := po.router.Route(req.ActiveAppName())
	po.traceDecision(req.SessionID, result, risk, route)
	po.publish(req.SessionID, EventPlanningCompleted, "Plan ready", 100)

	po.logger.Debug("plan ready",
		"session_id", req.SessionID,
		"rule", result.Rule,
		"model_route", route.Model,
		"actions", len(plan.Actions),
		"risk_level", plan.RiskLevel,
	)

	return plan, nil
}

// Simulate runs synthesis and risk classification without publishing events.
// parseErrors are validation problems found by the caller; when present the
// request is reported invalid and nothing is synthesized.
func (po *PlanOrchestrator) Simulate(ctx context.Context, req agent.PlanSimulationRequest, parseErrors []string) agent.PlanSimulationResponse {
	resp := agent.PlanSimulationResponse{
		SchemaVersion: agent.SchemaVersionCurrent,
		SessionID:     req.SessionID,
		ParseErrors:   []string{},
		RiskLevel:     agent.RiskLow,
	}

	if len(parseErrors) > 0 {
		resp.ParseErrors = append(resp.ParseErrors, parseErrors...)
		return resp
	}

	appName := ""
	if req.App != nil {
		appName = req.App.Name
	}

	result := po.synthesizer.PlanActions(ctx, agent.SynthesisInput{
		Transcript: req.Transcript,
		ActiveApp:  appName,
	})
	risk, confirm := ClassifyRisk(result.Actions)

	resp.IsValid = true
	resp.RiskLevel = risk
	resp.RequiresConfirmation = confirm
	resp.Summary = result.Summary
	resp.ProposedActionsCount = len(result.Actions)
	resp.RecoveryGuidance = recoveryGuidance(risk, result.Rule)

	return resp
}

// Models reports the model routing table and feature flags.
func (po *PlanOrchestrator) Models() agent.ModelsResponse {
	flags := map[string]string{
		"remote_llm": "off",
		"planner":    "rules",
		"guidance":   "absent",
	}
	if po.planner.EnableRemoteLLM {
		flags["remote_llm"] = "on"
	}
	if status, ok := po.synthesizer.(GuidanceStatus); ok && status.GuidanceLoaded() {
		flags["guidance"] = "loaded"
	}

	return agent.ModelsResponse{
		SchemaVersion: agent.SchemaVersionCurrent,
		Routing:       po.router.Routes(),
		FeatureFlags:  flags,
	}
}

func (po *PlanOrchestrator) publish(sessionID, event, message string, progress int) {
	p := progress
	po.publisher.Publish(agent.StreamEvent{
		SessionID: sessionID,
		Event:     event,
		Message:   message,
		Progress:  &p,
		Severity:  "info",
		Timestamp: po.now().UTC().Format(time.RFC3339),
	})

	if err := po.debugLogger.LogStage(sessionID, debug.StageEntry{
		Timestamp: po.now(),
		Component: "planner",
		Stage:     event,
		Detail:    message,
	}); err != nil {
		po.logger.Warn("debug trace write failed", "session_id", sessionID, "error", err)
	}
}

func (po *PlanOrchestrator) traceDecision(sessionID string, result agent.SynthesisResult, risk agent.RiskLevel, route agent.ModelRoute) {
	if !po.debugLogger.IsEnabled() {
		return
	}

	err := po.debugLogger.LogDecision(sessionID, debug.DecisionEntry{
		Timestamp:  po.now(),
		Component:  "synthesizer",
		Decision:   fmt.Sprintf("rule=%s risk=%s model=%s", result.Rule, risk, route.Model),
		Reasoning:  result.Summary,
		Confidence: result.Confidence,
	})
	if err != nil {
		po.logger.Warn("debug trace write failed", "session_id", sessionID, "error", err)
	}
}

func recoveryGuidance(risk agent.RiskLevel, rule string) string {
	switch {
	case risk == agent.RiskHigh:
		return guidanceHighRisk
	case risk == agent.RiskMedium:
		return guidanceMedium
	case rule == agent.FallbackRule:
		return guidanceFallback
	default:
		return ""
	}
}
