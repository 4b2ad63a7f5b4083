package tools

import (
	"context"
	"time"

	"orange-sidecar/internal/config"
)

// ToolSet bundles the read-only sources guidance providers are allowed to use.
type ToolSet struct {
	filesystem *FileSystem
	fetcher    *HTTPFetcher
}

func NewToolSet(guidance config.GuidanceSection) *ToolSet {
	rootDir := guidance.RootDir
	if rootDir == "" {
		rootDir = "vendor" // Default
	}

	return &ToolSet{
		filesystem: NewFileSystem(rootDir),
		fetcher:    NewHTTPFetcher(time.Duration(guidance.TimeoutSeconds) * time.Second),
	}
}

func (ts *ToolSet) ReadFile(path string) (string, error) {
	return ts.filesystem.ReadFile(path)
}

func (ts *ToolSet) Exists(path string) bool {
	return ts.filesystem.Exists(path)
}

func (ts *ToolSet) IsDir(path string) bool {
	return ts.filesystem.IsDir(path)
}

func (ts *ToolSet) FetchJSON(ctx context.Context, rawURL string, v any) error {
	return ts.fetcher.FetchJSON(ctx, rawURL, v)
}

func (ts *ToolSet) RootDir() string {
	return ts.filesystem.Root()
}
