package adapter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"orange-sidecar/internal/agent"
)

// Rule names reported in SynthesisResult.Rule
const (
	RuleOpenApp    = "open_app"
	RuleNavigate   = "navigate"
	RuleSlackReply = "slack_reply"
	RuleFallback   = agent.FallbackRule
)

const defaultSlackReply = "I'll be there."

// RE2's \w and \b are ASCII-only, so word boundaries around bare .com hosts
// are spelled out with Unicode classes. Group 1 is an explicit URL, group 2 a
// bare host.
var urlPattern = regexp.MustCompile(`(https?://\S+)|(?:^|[^\p{L}\p{N}_])([\p{L}\p{N}_]+\.com)(?:[^\p{L}\p{N}_]|$)`)

// findURL returns the first URL-like token in s.
func findURL(s string) (string, bool) {
	m := urlPattern.FindStringSubmatch(s)
	switch {
	case m == nil:
		return "", false
	case m[1] != "":
		return m[1], true
	default:
		return m[2], true
	}
}

var replyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)saying\s+(.+)$`),
	regexp.MustCompile(`(?i)reply\s+(.+)$`),
}

var supportedBrowsers = map[string]bool{
	"Safari":        true,
	"Google Chrome": true,
}

// ruleInput is the transcript pre-processed once per synthesis.
type ruleInput struct {
	raw       string
	trimmed   string
	lowered   string
	activeApp string
}

func newRuleInput(in agent.SynthesisInput) ruleInput {
	trimmed := strings.TrimSpace(in.Transcript)
	return ruleInput{
		raw:       in.Transcript,
		trimmed:   trimmed,
		lowered:   strings.ToLower(trimmed),
		activeApp: strings.TrimSpace(in.ActiveApp),
	}
}

type SynthesisRule struct {
	Name     string
	Priority int // Higher priority is evaluated first
	Match    func(ruleInput) bool
	Build    func(ruleInput) agent.SynthesisResult
}

// RuleEngine maps transcripts to actions; the highest-priority matching rule wins.
type RuleEngine struct {
	rules    []SynthesisRule
	fallback SynthesisRule
}

func NewRuleEngine() *RuleEngine {
	re := &RuleEngine{}
	re.initializeRules()
	return re
}

func (re *RuleEngine) initializeRules() {
	re.rules = []SynthesisRule{
		{
			Name:     RuleOpenApp,
			Priority: 40,
			Match: func(in ruleInput) bool {
				return strings.HasPrefix(in.lowered, "open ")
			},
			Build: buildOpenApp,
		},
		{
			Name:     RuleNavigate,
			Priority: 30,
			Match: func(in ruleInput) bool {
				return strings.Contains(in.lowered, "go to") && urlPattern.MatchString(in.lowered)
			},
			Build: buildNavigate,
		},
		{
			Name:     RuleSlackReply,
			Priority: 20,
			Match: func(in ruleInput) bool {
				return strings.Contains(in.lowered, "reply") && strings.Contains(in.lowered, "slack")
			},
			Build: buildSlackReply,
		},
	}

	sort.SliceStable(re.rules, func(i, j int) bool {
		return re.rules[i].Priority > re.rules[j].Priority
	})

	re.fallback = SynthesisRule{
		Name:     RuleFallback,
		Priority: 0,
		Match:    func(ruleInput) bool { return true },
		Build:    buildFallback,
	}
}

// Synthesize runs the rule table against the input. It never fails.
func (re *RuleEngine) Synthesize(in agent.SynthesisInput) agent.SynthesisResult {
	ri := newRuleInput(in)
	rule := re.match(ri)
	result := rule.Build(ri)
	result.Rule = rule.Name
	return result
}

func (re *RuleEngine) match(in ruleInput) SynthesisRule {
	for _, rule := range re.rules {
		if rule.Match(in) {
			return rule
		}
	}
	return re.fallback
}

// RuleNames lists rules in evaluation order, fallback last.
func (re *RuleEngine) RuleNames() []string {
	names := make([]string, 0, len(re.rules)+1)
	for _, rule := range re.rules {
		names = append(names, rule.Name)
	}
	return append(names, re.fallback.Name)
}

func buildOpenApp(in ruleInput) agent.SynthesisResult {
	// "open " is ASCII, so the lowered prefix has the same byte length.
	target := strings.TrimSpace(in.trimmed[len("open "):])

	action := agent.NewAction("a1", agent.ActionOpenApp)
	action.Target = target
	action.ExpectedOutcome = fmt.Sprintf("%s is frontmost", target)

	return agent.SynthesisResult{
		Actions:    []agent.Action{action},
		Confidence: 0.92,
		Summary:    fmt.Sprintf("Open %s", target),
	}
}

func buildNavigate(in ruleInput) agent.SynthesisResult {
	url, _ := findURL(in.lowered)
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}

	browser := "Safari"
	if supportedBrowsers[in.activeApp] {
		browser = in.activeApp
	}

	openBrowser := agent.NewAction("a1", agent.ActionOpenApp)
	openBrowser.Target = browser
	openBrowser.ExpectedOutcome = "Browser opened"

	focusBar := agent.NewAction("a2", agent.ActionKeyCombo)
	focusBar.KeyCombo = "cmd+l"
	focusBar.ExpectedOutcome = "Address bar focused"

	typeURL := agent.NewAction("a3", agent.ActionType)
	typeURL.Text = url
	typeURL.ExpectedOutcome = fmt.Sprintf("URL entered: %s", url)

	submit := agent.NewAction("a4", agent.ActionKeyCombo)
	submit.KeyCombo = "enter"
	submit.ExpectedOutcome = "Page loads"

	return agent.SynthesisResult{
		Actions:    []agent.Action{openBrowser, focusBar, typeURL, submit},
		Confidence: 0.86,
		Summary:    fmt.Sprintf("Navigate to %s", url),
	}
}

func buildSlackReply(in ruleInput) agent.SynthesisResult {
	body, ok := extractReplyText(in.trimmed)
	if !ok || body == "" {
		body = defaultSlackReply
	}

	thread := agent.NewAction("a1", agent.ActionClick)
	thread.Target = "Last message thread"
	thread.ExpectedOutcome = "Thread selected"

	composer := agent.NewAction("a2", agent.ActionClick)
	composer.Target = "Message composer"
	composer.ExpectedOutcome = "Input focused"

	typeReply := agent.NewAction("a3", agent.ActionType)
	typeReply.Text = body
	typeReply.ExpectedOutcome = "Reply text entered"

	send := agent.NewAction("a4", agent.ActionKeyCombo)
	send.KeyCombo = "enter"
	send.Destructive = true
	send.ExpectedOutcome = "Message sent"

	return agent.SynthesisResult{
		Actions:    []agent.Action{thread, composer, typeReply, send},
		Confidence: 0.78,
		Summary:    "Reply in Slack thread",
	}
}

func buildFallback(in ruleInput) agent.SynthesisResult {
	action := agent.NewAction("a1", agent.ActionType)
	action.Text = in.raw
	action.ExpectedOutcome = "Transcript typed in focused input"

	return agent.SynthesisResult{
		Actions:    []agent.Action{action},
		Confidence: 0.6,
		Summary:    "Type transcript in focused field",
	}
}

// extractReplyText pulls the message body from "... saying <text>" or
// "reply <text>", stripping surrounding quotes.
func extractReplyText(transcript string) (string, bool) {
	for _, pattern := range replyPatterns {
		if m := pattern.FindStringSubmatch(transcript); m != nil {
			return strings.Trim(strings.TrimSpace(m[1]), `"`), true
		}
	}
	return "", false
}
