package adapter

import (
	"fmt"

	"orange-sidecar/internal/agent"
	"orange-sidecar/internal/config"
	"orange-sidecar/internal/tools"
)

// NewGuidanceSource picks the guidance provider named by the configuration.
func NewGuidanceSource(cfg config.GuidanceSection, toolSet *tools.ToolSet) (agent.GuidanceSource, error) {
	switch cfg.Source {
	case config.GuidanceNone, "":
		return NoGuidance{}, nil
	case config.GuidanceFile:
		return NewFileGuidance(toolSet, cfg.Path), nil
	case config.GuidanceHTTP:
		return NewHTTPGuidance(toolSet, cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown guidance source: %s", cfg.Source)
	}
}
