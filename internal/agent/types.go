package agent

import (
	"context"
)

// Schema versions accepted on the wire. Requests outside [SchemaVersionMin,
// SchemaVersionCurrent] are rejected by the transport before the core runs.
const (
	SchemaVersionMin     = 0
	SchemaVersionCurrent = 1
)

// Risk classification
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels low < medium < high.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// RequiresConfirmation reports whether a plan at this level must be approved
// by the user before it runs.
func (r RiskLevel) RequiresConfirmation() bool {
	return r.Rank() > RiskLow.Rank()
}

// Execution and verification statuses
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailure ExecutionStatus = "failure"
	ExecutionPartial ExecutionStatus = "partial"
)

type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyFailure VerifyStatus = "failure"
)

// Request and Response Types
type AppMetadata struct {
	Name        string `json:"name,omitempty"`
	BundleID    string `json:"bundle_id,omitempty"`
	WindowTitle string `json:"window_title,omitempty"`
	URL         string `json:"url,omitempty"`
}

type PlannerPreferences struct {
	PreferredModel string `json:"preferred_model,omitempty"`
	Locale         string `json:"locale,omitempty"`
	LowLatency     *bool  `json:"low_latency,omitempty"`
}

type PlanRequest struct {
	SchemaVersion    int                 `json:"schema_version"`
	SessionID        string              `json:"session_id"`
	Transcript       string              `json:"transcript"`
	ScreenshotBase64 string              `json:"screenshot_base64,omitempty"`
	AXTreeSummary    string              `json:"ax_tree_summary,omitempty"`
	App              *AppMetadata        `json:"app,omitempty"`
	Preferences      *PlannerPreferences `json:"preferences,omitempty"`
}

// ActiveAppName returns the frontmost application name, if the client sent one.
func (r PlanRequest) ActiveAppName() string {
	if r.App == nil {
		return ""
	}
	return r.App.Name
}

type ActionPlan struct {
	SchemaVersion        int       `json:"schema_version"`
	SessionID            string    `json:"session_id"`
	Actions              []Action  `json:"actions"`
	Confidence           float64   `json:"confidence"`
	RiskLevel            RiskLevel `json:"risk_level"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	Summary              string    `json:"summary,omitempty"`
}

type PlanSimulationRequest struct {
	SchemaVersion int                 `json:"schema_version"`
	SessionID     string              `json:"session_id"`
	Transcript    string              `json:"transcript"`
	App           *AppMetadata        `json:"app,omitempty"`
	Preferences   *PlannerPreferences `json:"preferences,omitempty"`
}

type PlanSimulationResponse struct {
	SchemaVersion        int       `json:"schema_version"`
	SessionID            string    `json:"session_id"`
	IsValid              bool      `json:"is_valid"`
	ParseErrors          []string  `json:"parse_errors"`
	RiskLevel            RiskLevel `json:"risk_level"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	Summary              string    `json:"summary"`
	ProposedActionsCount int       `json:"proposed_actions_count"`
	RecoveryGuidance     string    `json:"recovery_guidance,omitempty"`
}

type ModelRoute struct {
	App    string `json:"app,omitempty"`
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

type ModelsResponse struct {
	SchemaVersion int               `json:"schema_version"`
	Routing       []ModelRoute      `json:"routing"`
	FeatureFlags  map[string]string `json:"feature_flags"`
}

type VerifyRequest struct {
	SchemaVersion   int             `json:"schema_version"`
	SessionID       string          `json:"session_id"`
	ActionPlan      ActionPlan      `json:"action_plan"`
	ExecutionResult ExecutionStatus `json:"execution_result"`
	Reason          string          `json:"reason,omitempty"`
	BeforeContext   string          `json:"before_context,omitempty"`
	AfterContext    string          `json:"after_context,omitempty"`
}

type VerifyResponse struct {
	SchemaVersion     int          `json:"schema_version"`
	SessionID         string       `json:"session_id"`
	Status            VerifyStatus `json:"status"`
	Confidence        float64      `json:"confidence"`
	Reason            string       `json:"reason,omitempty"`
	CorrectiveActions []Action     `json:"corrective_actions"`
}

// StreamEvent is a transient progress notification for one session.
type StreamEvent struct {
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	Message   string `json:"message"`
	Progress  *int   `json:"progress,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Synthesis Types
type SynthesisInput struct {
	Transcript    string
	ActiveApp     string
	AXTreeSummary string
}

// FallbackRule names the catch-all synthesis rule.
const FallbackRule = "fallback"

type SynthesisResult struct {
	Actions    []Action
	Confidence float64
	Summary    string
	Rule       string // name of the rule that produced the actions
}

// Core Interfaces
type Synthesizer interface {
	PlanActions(ctx context.Context, in SynthesisInput) SynthesisResult
}

type Publisher interface {
	Publish(event StreamEvent)
}

// GuidanceSource provides optional vendor guidance text. Implementations never
// fail: a missing or unreadable source reports found=false.
type GuidanceSource interface {
	FetchGuidance(ctx context.Context) (text string, found bool)
}
