package orchestrator

import (
	"strings"

	"orange-sidecar/internal/agent"
)

var riskyKinds = map[agent.ActionKind]bool{
	agent.ActionRunAppleScript: true,
}

var riskyKeyCombos = map[string]bool{
	"enter": true,
}

// ActionRisk classifies a single action.
func ActionRisk(action agent.Action) agent.RiskLevel {
	if action.Destructive || riskyKinds[action.Kind] {
		return agent.RiskHigh
	}
	if action.Kind == agent.ActionKeyCombo && riskyKeyCombos[strings.ToLower(action.KeyCombo)] {
		return agent.RiskMedium
	}
	return agent.RiskLow
}

// ClassifyRisk returns the highest risk across all actions and whether the
// plan needs user confirmation.
func ClassifyRisk(actions []agent.Action) (agent.RiskLevel, bool) {
	level := agent.RiskLow
	for _, action := range actions {
		if r := ActionRisk(action); r.Rank() > level.Rank() {
			level = r
		}
	}
	return level, level.RequiresConfirmation()
}
