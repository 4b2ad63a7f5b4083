package adapter

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPromptPath is the vendored prompt module, relative to the guidance root.
const DefaultPromptPath = "mlx_use/agent/prompts.py"

const importantRulesMarker = "def important_rules(self) -> str:"

var rulesLiteralPattern = regexp.MustCompile(`(?s)^\s*(?:"""(?:.*?)"""\s*)?text\s*=\s*"""(.*?)"""`)

// GuidanceReader is the read-only view of the guidance tool set.
type GuidanceReader interface {
	ReadFile(path string) (string, error)
	IsDir(path string) bool
}

type GuidanceFetcher interface {
	FetchJSON(ctx context.Context, rawURL string, v any) error
}

// NoGuidance always reports no guidance.
type NoGuidance struct{}

func (NoGuidance) FetchGuidance(context.Context) (string, bool) {
	return "", false
}

// FileGuidance reads guidance from a vendored document under the tool set root.
type FileGuidance struct {
	reader GuidanceReader
	path   string
	logger *slog.Logger
}

func NewFileGuidance(reader GuidanceReader, docPath string) *FileGuidance {
	return &FileGuidance{
		reader: reader,
		path:   docPath,
		logger: slog.Default().With("component", "guidance", "source", "file"),
	}
}

func (g *FileGuidance) FetchGuidance(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}

	docPath := g.path
	if docPath == "" || g.reader.IsDir(docPath) {
		docPath = path.Join(docPath, DefaultPromptPath)
	}

	content, err := g.reader.ReadFile(docPath)
	if err != nil {
		g.logger.Debug("guidance document unavailable", "path", docPath, "error", err)
		return "", false
	}

	switch strings.ToLower(path.Ext(docPath)) {
	case ".yaml", ".yml":
		return parseYAMLGuidance(content)
	default:
		return parsePromptGuidance(content)
	}
}

// HTTPGuidance fetches {"important_rules": "..."} from a URL.
type HTTPGuidance struct {
	fetcher GuidanceFetcher
	url     string
	logger  *slog.Logger
}

func NewHTTPGuidance(fetcher GuidanceFetcher, url string) *HTTPGuidance {
	return &HTTPGuidance{
		fetcher: fetcher,
		url:     url,
		logger:  slog.Default().With("component", "guidance", "source", "http"),
	}
}

func (g *HTTPGuidance) FetchGuidance(ctx context.Context) (string, bool) {
	var doc struct {
		ImportantRules string `json:"important_rules"`
	}
	if err := g.fetcher.FetchJSON(ctx, g.url, &doc); err != nil {
		g.logger.Debug("guidance fetch failed", "url", g.url, "error", err)
		return "", false
	}

	text := strings.TrimSpace(doc.ImportantRules)
	return text, text != ""
}

func parseYAMLGuidance(content string) (string, bool) {
	var doc struct {
		ImportantRules string `yaml:"important_rules"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return "", false
	}

	text := strings.TrimSpace(doc.ImportantRules)
	return text, text != ""
}

// parsePromptGuidance extracts the important_rules text from the vendored
// prompt module source.
func parsePromptGuidance(source string) (string, bool) {
	block, found := locateRulesBlock(source)
	if !found {
		return "", false
	}
	return extractRulesLiteral(block)
}

// locateRulesBlock returns the source following the important_rules definition.
func locateRulesBlock(source string) (string, bool) {
	idx := strings.Index(source, importantRulesMarker)
	if idx < 0 {
		return "", false
	}
	return source[idx+len(importantRulesMarker):], true
}

// extractRulesLiteral reads the `text = """..."""` literal that opens the
// block, skipping an optional docstring.
func extractRulesLiteral(block string) (string, bool) {
	m := rulesLiteralPattern.FindStringSubmatch(block)
	if m == nil {
		return "", false
	}

	text := strings.TrimSpace(m[1])
	return text, text != ""
}
