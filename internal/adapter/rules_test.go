package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orange-sidecar/internal/agent"
)

func synthesize(transcript, app string) agent.SynthesisResult {
	return NewRuleEngine().Synthesize(agent.SynthesisInput{Transcript: transcript, ActiveApp: app})
}

func TestOpenAppRule(t *testing.T) {
	tests := []struct {
		transcript string
		target     string
	}{
		{"open Safari", "Safari"},
		{"  OPEN   Google Chrome  ", "Google Chrome"},
		{"Open slack", "slack"},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			result := synthesize(tt.transcript, "")

			require.Len(t, result.Actions, 1)
			action := result.Actions[0]
			assert.Equal(t, "a1", action.ID)
			assert.Equal(t, agent.ActionOpenApp, action.Kind)
			assert.Equal(t, tt.target, action.Target)
			assert.Equal(t, tt.target+" is frontmost", action.ExpectedOutcome)
			assert.Equal(t, agent.DefaultTimeoutMS, action.TimeoutMS)
			assert.Equal(t, 0.92, result.Confidence)
			assert.Equal(t, "Open "+tt.target, result.Summary)
			assert.Equal(t, RuleOpenApp, result.Rule)
		})
	}
}

func TestOpenWithoutTargetFallsBack(t *testing.T) {
	result := synthesize("open   ", "")
	assert.Equal(t, RuleFallback, result.Rule)
}

func TestNavigateRule(t *testing.T) {
	result := synthesize("go to openai.com", "")

	require.Len(t, result.Actions, 4)
	assert.Equal(t, RuleNavigate, result.Rule)
	assert.Equal(t, 0.86, result.Confidence)
	assert.Equal(t, "Navigate to https://openai.com", result.Summary)

	a := result.Actions
	assert.Equal(t, agent.ActionOpenApp, a[0].Kind)
	assert.Equal(t, "Safari", a[0].Target)
	assert.Equal(t, "Browser opened", a[0].ExpectedOutcome)
	assert.Equal(t, agent.ActionKeyCombo, a[1].Kind)
	assert.Equal(t, "cmd+l", a[1].KeyCombo)
	assert.Equal(t, agent.ActionType, a[2].Kind)
	assert.Equal(t, "https://openai.com", a[2].Text)
	assert.Equal(t, "URL entered: https://openai.com", a[2].ExpectedOutcome)
	assert.Equal(t, agent.ActionKeyCombo, a[3].Kind)
	assert.Equal(t, "enter", a[3].KeyCombo)
	assert.False(t, a[3].Destructive)

	for i, action := range a {
		assert.Equal(t, []string{"a1", "a2", "a3", "a4"}[i], action.ID)
		assert.False(t, action.Destructive)
	}
}

func TestNavigateRuleBrowserSelection(t *testing.T) {
	tests := []struct {
		app     string
		browser string
	}{
		{"", "Safari"},
		{"Safari", "Safari"},
		{"Google Chrome", "Google Chrome"},
		{"Firefox", "Safari"},
		{"Slack", "Safari"},
	}

	for _, tt := range tests {
		t.Run(tt.app, func(t *testing.T) {
			result := synthesize("please go to example.com now", tt.app)
			require.Equal(t, RuleNavigate, result.Rule)
			assert.Equal(t, tt.browser, result.Actions[0].Target)
		})
	}
}

func TestNavigateRuleKeepsScheme(t *testing.T) {
	result := synthesize("Go To http://Example.org/path", "")

	require.Equal(t, RuleNavigate, result.Rule)
	assert.Equal(t, "http://example.org/path", result.Actions[2].Text)
}

func TestNavigateRuleBareHosts(t *testing.T) {
	tests := []struct {
		transcript string
		url        string
	}{
		{"go to café.com", "https://café.com"},
		{"go to Straße.com please", "https://straße.com"},
		{"go to mail.google.com", "https://google.com"},
		{"go to shop_42.com.", "https://shop_42.com"},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			result := synthesize(tt.transcript, "")

			require.Equal(t, RuleNavigate, result.Rule)
			assert.Equal(t, tt.url, result.Actions[2].Text)
			assert.Equal(t, "Navigate to "+tt.url, result.Summary)
		})
	}

	assert.Equal(t, RuleFallback, synthesize("go to café.community", "").Rule)
}

func TestNavigateRequiresURL(t *testing.T) {
	result := synthesize("go to the kitchen", "")
	assert.Equal(t, RuleFallback, result.Rule)
}

func TestSlackReplyRule(t *testing.T) {
	result := synthesize("reply saying see you soon in slack", "")

	require.Len(t, result.Actions, 4)
	assert.Equal(t, RuleSlackReply, result.Rule)
	assert.Equal(t, 0.78, result.Confidence)
	assert.Equal(t, "Reply in Slack thread", result.Summary)

	a := result.Actions
	assert.Equal(t, agent.ActionClick, a[0].Kind)
	assert.Equal(t, "Last message thread", a[0].Target)
	assert.Equal(t, agent.ActionClick, a[1].Kind)
	assert.Equal(t, "Message composer", a[1].Target)
	assert.Equal(t, agent.ActionType, a[2].Kind)
	assert.Equal(t, "see you soon in slack", a[2].Text)
	assert.Equal(t, agent.ActionKeyCombo, a[3].Kind)
	assert.Equal(t, "enter", a[3].KeyCombo)
	assert.True(t, a[3].Destructive)
	assert.Equal(t, "Message sent", a[3].ExpectedOutcome)
}

func TestSlackReplyBodyExtraction(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		body       string
	}{
		{"saying with quotes", `In Slack, reply saying "on my way"`, "on my way"},
		{"reply pattern", "slack reply thanks a lot", "thanks a lot"},
		{"saying wins over reply", "Reply in Slack Saying ok", "ok"},
		{"no body", "slack reply", "I'll be there."},
		{"quotes only", `reply in slack saying ""`, "I'll be there."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := synthesize(tt.transcript, "")
			require.Equal(t, RuleSlackReply, result.Rule)
			assert.Equal(t, tt.body, result.Actions[2].Text)
		})
	}
}

func TestFallbackRuleKeepsTranscriptVerbatim(t *testing.T) {
	transcript := "  turn off the lights "
	result := synthesize(transcript, "")

	require.Len(t, result.Actions, 1)
	assert.Equal(t, RuleFallback, result.Rule)
	assert.Equal(t, agent.ActionType, result.Actions[0].Kind)
	assert.Equal(t, transcript, result.Actions[0].Text)
	assert.Equal(t, "Transcript typed in focused input", result.Actions[0].ExpectedOutcome)
	assert.Equal(t, 0.6, result.Confidence)
	assert.Equal(t, "Type transcript in focused field", result.Summary)
}

func TestRulePriorityOrder(t *testing.T) {
	// open beats navigate and slack
	assert.Equal(t, RuleOpenApp, synthesize("open go to example.com", "").Rule)
	// navigate beats slack
	assert.Equal(t, RuleNavigate, synthesize("reply in slack and go to slack.com", "").Rule)

	assert.Equal(t, []string{RuleOpenApp, RuleNavigate, RuleSlackReply, RuleFallback}, NewRuleEngine().RuleNames())
}

func TestAdapterIgnoresGuidanceForOutput(t *testing.T) {
	ctx := context.Background()
	plain := New(ctx, nil)
	guided := New(ctx, staticGuidance("Always double-check targets."))

	assert.False(t, plain.GuidanceLoaded())
	assert.Empty(t, plain.Guidance())
	assert.True(t, guided.GuidanceLoaded())
	assert.Equal(t, "Always double-check targets.", guided.Guidance())

	for _, transcript := range []string{"open Notes", "go to openai.com", "reply saying hi in slack", "hello"} {
		in := agent.SynthesisInput{Transcript: transcript}
		assert.Equal(t, plain.PlanActions(ctx, in), guided.PlanActions(ctx, in))
	}
}

type staticGuidance string

func (s staticGuidance) FetchGuidance(context.Context) (string, bool) {
	return string(s), s != ""
}

func agentInput(transcript string) agent.SynthesisInput {
	return agent.SynthesisInput{Transcript: transcript}
}
