package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orange-sidecar/internal/config"
	"orange-sidecar/internal/tools"
)

const promptSource = `class SystemPrompt:
    def important_rules(self) -> str:
        """
        Returns the important rules for the agent.
        """
        text = """
1. Always open the app before interacting with it.
2. Never send a message without confirmation.
"""
        return text
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newToolSet(root string) *tools.ToolSet {
	return tools.NewToolSet(config.GuidanceSection{RootDir: root, TimeoutSeconds: 1})
}

func TestNoGuidance(t *testing.T) {
	text, found := NoGuidance{}.FetchGuidance(context.Background())
	assert.False(t, found)
	assert.Empty(t, text)
}

func TestFileGuidanceDefaultPromptModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, DefaultPromptPath, promptSource)

	text, found := NewFileGuidance(newToolSet(root), "").FetchGuidance(context.Background())
	require.True(t, found)
	assert.Equal(t, "1. Always open the app before interacting with it.\n2. Never send a message without confirmation.", text)
}

func TestFileGuidanceDirectoryPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, filepath.Join("macos-use", DefaultPromptPath), promptSource)

	_, found := NewFileGuidance(newToolSet(root), "macos-use").FetchGuidance(context.Background())
	assert.True(t, found)
}

func TestFileGuidanceYAML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rules.yaml", "important_rules: |\n  Keep actions short.\n  Confirm sends.\n")

	text, found := NewFileGuidance(newToolSet(root), "rules.yaml").FetchGuidance(context.Background())
	require.True(t, found)
	assert.Equal(t, "Keep actions short.\nConfirm sends.", text)
}

func TestFileGuidanceFailuresAreEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "broken.yml", "important_rules: [unterminated")
	writeFile(t, root, "no_rules.yaml", "other: value\n")
	writeFile(t, root, "prompts.py", "def something_else(self):\n    return ''\n")
	writeFile(t, root, "no_literal.py", "def important_rules(self) -> str:\n    return 'x'\n")

	outside := filepath.Join(filepath.Dir(root), "outside.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("important_rules: secret\n"), 0o644))
	t.Cleanup(func() { os.Remove(outside) })

	for _, docPath := range []string{"missing.py", "broken.yml", "no_rules.yaml", "prompts.py", "no_literal.py", "../outside.yaml"} {
		t.Run(docPath, func(t *testing.T) {
			text, found := NewFileGuidance(newToolSet(root), docPath).FetchGuidance(context.Background())
			assert.False(t, found)
			assert.Empty(t, text)
		})
	}
}

func TestPromptParseSteps(t *testing.T) {
	_, found := locateRulesBlock("def other(self) -> str:")
	assert.False(t, found)

	block, found := locateRulesBlock(promptSource)
	require.True(t, found)

	text, found := extractRulesLiteral(block)
	require.True(t, found)
	assert.Contains(t, text, "Always open the app")

	// literal without a docstring
	text, found = extractRulesLiteral("\n    text = \"\"\"rule one\"\"\"\n")
	require.True(t, found)
	assert.Equal(t, "rule one", text)

	_, found = extractRulesLiteral("\n    return 'nothing'\n")
	assert.False(t, found)
}

func TestHTTPGuidance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rules.json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"important_rules": "  Use keyboard shortcuts.  "}`))
		case "/empty.json":
			w.Write([]byte(`{}`))
		case "/garbage":
			w.Write([]byte(`not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	ts := newToolSet(t.TempDir())

	text, found := NewHTTPGuidance(ts, server.URL+"/rules.json").FetchGuidance(context.Background())
	require.True(t, found)
	assert.Equal(t, "Use keyboard shortcuts.", text)

	for _, path := range []string{"/empty.json", "/garbage", "/missing"} {
		text, found := NewHTTPGuidance(ts, server.URL+path).FetchGuidance(context.Background())
		assert.False(t, found, path)
		assert.Empty(t, text, path)
	}

	_, found = NewHTTPGuidance(ts, "ftp://example.com/rules.json").FetchGuidance(context.Background())
	assert.False(t, found)
}

func TestNewGuidanceSource(t *testing.T) {
	ts := newToolSet(t.TempDir())

	source, err := NewGuidanceSource(config.GuidanceSection{Source: config.GuidanceNone}, ts)
	require.NoError(t, err)
	assert.IsType(t, NoGuidance{}, source)

	source, err = NewGuidanceSource(config.GuidanceSection{Source: config.GuidanceFile, Path: "rules.yaml"}, ts)
	require.NoError(t, err)
	assert.IsType(t, &FileGuidance{}, source)

	source, err = NewGuidanceSource(config.GuidanceSection{Source: config.GuidanceHTTP, URL: "http://localhost/rules"}, ts)
	require.NoError(t, err)
	assert.IsType(t, &HTTPGuidance{}, source)

	_, err = NewGuidanceSource(config.GuidanceSection{Source: "ftp"}, ts)
	assert.Error(t, err)
}

func TestAdapterLoadsGuidanceOnce(t *testing.T) {
	counter := &countingGuidance{}
	a := New(context.Background(), counter)
	a.PlanActions(context.Background(), agentInput("open Mail"))
	a.PlanActions(context.Background(), agentInput("hello"))

	assert.Equal(t, 1, counter.calls)
}

type countingGuidance struct{ calls int }

func (c *countingGuidance) FetchGuidance(context.Context) (string, bool) {
	c.calls++
	return "", false
}
