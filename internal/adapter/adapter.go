package adapter

import (
	"context"
	"log/slog"
	"time"

	"orange-sidecar/internal/agent"
)

// guidanceLoadTimeout bounds the one-time guidance query at construction.
const guidanceLoadTimeout = 5 * time.Second

// Adapter is the deterministic action synthesizer. Guidance text is exposed
// for information only and never changes the rule output.
type Adapter struct {
	engine         *RuleEngine
	guidance       string
	guidanceLoaded bool
	logger         *slog.Logger
}

// New builds the synthesizer and queries source once. A nil source means no
// guidance.
func New(ctx context.Context, source agent.GuidanceSource) *Adapter {
	a := &Adapter{
		engine: NewRuleEngine(),
		logger: slog.Default().With("component", "adapter"),
	}

	if source == nil {
		source = NoGuidance{}
	}

	loadCtx, cancel := context.WithTimeout(ctx, guidanceLoadTimeout)
	defer cancel()

	a.guidance, a.guidanceLoaded = source.FetchGuidance(loadCtx)
	if !a.guidanceLoaded {
		a.guidance = ""
	}
	a.logger.Info("synthesizer ready", "guidance_loaded", a.guidanceLoaded, "rules", a.engine.RuleNames())

	return a
}

// PlanActions maps the transcript to actions. The ax-tree summary is accepted
// but not consulted by any rule yet.
func (a *Adapter) PlanActions(_ context.Context, in agent.SynthesisInput) agent.SynthesisResult {
	return a.engine.Synthesize(in)
}

func (a *Adapter) GuidanceLoaded() bool {
	return a.guidanceLoaded
}

func (a *Adapter) Guidance() string {
	return a.guidance
}
