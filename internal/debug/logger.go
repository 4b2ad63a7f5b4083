package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DebugLogger writes a human-readable trace file per planning session.
// A nil or disabled logger is a no-op.
type DebugLogger struct {
	enabled  bool
	baseDir  string
	maxBytes int64

	mu    sync.Mutex
	files map[string]string // session id -> trace file
}

// StageEntry records one lifecycle step of a session.
type StageEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail"`
}

// DecisionEntry records why a component chose an outcome
type DecisionEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Component    string    `json:"component"`
	Decision     string    `json:"decision"`
	Reasoning    string    `json:"reasoning"`
	Alternatives []string  `json:"alternatives"`
	Confidence   float64   `json:"confidence"`
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// NewDebugLogger creates a new debug logger. maxMB caps each trace file; 0
// means unbounded.
func NewDebugLogger(enabled bool, baseDir string, maxMB int) *DebugLogger {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "orange-debug")
	}

	// Create debug directory if it doesn't exist
	if enabled {
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			enabled = false
		}
	}

	return &DebugLogger{
		enabled:  enabled,
		baseDir:  baseDir,
		maxBytes: int64(maxMB) << 20,
		files:    make(map[string]string),
	}
}

// StartSession creates the trace file for sessionID. Calling it again for
// the same session keeps the existing file.
func (dl *DebugLogger) StartSession(sessionID string) error {
	if !dl.IsEnabled() {
		return nil
	}

	dl.mu.Lock()
	if _, ok := dl.files[sessionID]; ok {
		dl.mu.Unlock()
		return nil
	}
	name := strings.Trim(unsafeFileChars.ReplaceAllString(sessionID, "_"), ".")
	if name == "" {
		name = "anonymous"
	}
	path := filepath.Join(dl.baseDir, fmt.Sprintf("session-%s-%s.log", name, time.Now().Format("20060102-150405")))
	dl.files[sessionID] = path
	dl.mu.Unlock()

	header := fmt.Sprintf(`
=== ORANGE SIDECAR SESSION ===
Session ID: %s
Started: %s
File: %s

`, sessionID, time.Now().UTC().Format(time.RFC3339), path)

	return dl.write(sessionID, header)
}

// LogStage logs a lifecycle step
func (dl *DebugLogger) LogStage(sessionID string, entry StageEntry) error {
	if !dl.IsEnabled() {
		return nil
	}

	text := fmt.Sprintf("[%s] STAGE %s/%s\n%s\n---\n\n",
		entry.Timestamp.Format("15:04:05.000"), entry.Component, entry.Stage, entry.Detail)

	return dl.write(sessionID, text)
}

// LogDecision logs a rule or verdict decision
func (dl *DebugLogger) LogDecision(sessionID string, decision DecisionEntry) error {
	if !dl.IsEnabled() {
		return nil
	}

	text := fmt.Sprintf(`[%s] DECISION %s
Decision: %s
Confidence: %.2f
Reasoning: %s
`, decision.Timestamp.Format("15:04:05.000"), decision.Component, decision.Decision, decision.Confidence, decision.Reasoning)

	if len(decision.Alternatives) > 0 {
		text += "Alternatives considered:\n"
		for i, alt := range decision.Alternatives {
			text += fmt.Sprintf("  %d. %s\n", i+1, alt)
		}
	}

	text += "---\n\n"

	return dl.write(sessionID, text)
}

// LogError logs an error with context
func (dl *DebugLogger) LogError(sessionID, component string, err error, context string) error {
	if !dl.IsEnabled() || err == nil {
		return nil
	}

	text := fmt.Sprintf(`[%s] ERROR %s
Context: %s
Error: %s
---

`, time.Now().Format("15:04:05.000"), component, context, err.Error())

	return dl.write(sessionID, text)
}

// SessionFile returns the trace file for a session, or "" if none was started.
func (dl *DebugLogger) SessionFile(sessionID string) string {
	if dl == nil {
		return ""
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.files[sessionID]
}

// IsEnabled returns whether debugging is enabled
func (dl *DebugLogger) IsEnabled() bool {
	return dl != nil && dl.enabled
}

// write appends content to the session's trace file, starting the session on
// first use.
func (dl *DebugLogger) write(sessionID, content string) error {
	path := dl.SessionFile(sessionID)
	if path == "" {
		if err := dl.StartSession(sessionID); err != nil {
			return err
		}
		path = dl.SessionFile(sessionID)
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.maxBytes > 0 {
		if info, err := os.Stat(path); err == nil && info.Size()+int64(len(content)) > dl.maxBytes {
			return nil
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(content); err != nil {
		return fmt.Errorf("failed to write trace file: %w", err)
	}
	return nil
}
