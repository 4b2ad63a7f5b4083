package orchestrator

import (
	"sort"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/config"
)

type ModelRule struct {
	App      string // empty matches any app
	Model    string
	Reason   string
	Priority int // Higher priority takes precedence
}

// ModelRouter decides which remote model tier each app would be routed to.
type ModelRouter struct {
	rules []ModelRule
}

func NewModelRouter(planner config.PlannerSection) *ModelRouter {
	mr := &ModelRouter{}
	mr.initializeRules(planner)
	return mr
}

func (mr *ModelRouter) initializeRules(planner config.PlannerSection) {
	mr.rules = []ModelRule{
		{
			Model:    planner.ModelSimple,
			Reason:   "Default route for short single-app commands",
			Priority: 0,
		},
		{
			App:      "Safari",
			Model:    planner.ModelComplex,
			Reason:   "Browser navigation needs page-aware planning",
			Priority: 10,
		},
		{
			App:      "Google Chrome",
			Model:    planner.ModelComplex,
			Reason:   "Browser navigation needs page-aware planning",
			Priority: 10,
		},
		{
			App:      "Slack",
			Model:    planner.ModelComplex,
			Reason:   "Messaging replies need conversation context",
			Priority: 10,
		},
	}

	sort.SliceStable(mr.rules, func(i, j int) bool {
		return mr.rules[i].Priority < mr.rules[j].Priority
	})
}

// Route returns the model for an app: the highest-priority rule naming the
// app, else the default route.
func (mr *ModelRouter) Route(app string) agent.ModelRoute {
	var best *ModelRule
	for i := range mr.rules {
		rule := &mr.rules[i]
		if rule.App != "" && rule.App != app {
			continue
		}
		if best == nil || rule.Priority > best.Priority {
			best = rule
		}
	}

	if best == nil {
		return agent.ModelRoute{}
	}
	return agent.ModelRoute{App: best.App, Model: best.Model, Reason: best.Reason}
}

// Routes lists every routing entry, default first.
func (mr *ModelRouter) Routes() []agent.ModelRoute {
	routes := make([]agent.ModelRoute, 0, len(mr.rules))
	for _, rule := range mr.rules {
		routes = append(routes, agent.ModelRoute{App: rule.App, Model: rule.Model, Reason: rule.Reason})
	}
	return routes
}
