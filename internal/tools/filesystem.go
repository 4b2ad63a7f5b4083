package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem reads files confined to a root directory.
type FileSystem struct {
	rootDir string
}

func NewFileSystem(rootDir string) *FileSystem {
	return &FileSystem{
		rootDir: rootDir,
	}
}

// Root returns the directory reads are confined to.
func (fs *FileSystem) Root() string {
	return fs.rootDir
}

func (fs *FileSystem) resolve(path string) (string, error) {
	// Make path absolute if relative
	if !filepath.IsAbs(path) {
		path = filepath.Join(fs.rootDir, path)
	}

	absRoot, err := filepath.Abs(fs.rootDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	// Security check: ensure path is within the root directory
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("access denied: path outside root directory")
	}

	return absPath, nil
}

func (fs *FileSystem) ReadFile(path string) (string, error) {
	absPath, err := fs.resolve(path)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return string(content), nil
}

// IsDir reports whether path exists inside the root and is a directory.
func (fs *FileSystem) IsDir(path string) bool {
	absPath, err := fs.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(absPath)
	return err == nil && info.IsDir()
}

// Exists reports whether path exists inside the root.
func (fs *FileSystem) Exists(path string) bool {
	absPath, err := fs.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(absPath)
	return err == nil
}
