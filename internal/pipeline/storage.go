package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Storage defines the interface for holding uploaded images on disk so the
// pipeline can scan them by path.
type Storage interface {
	// Save writes the image and returns its path on disk.
	Save(filename string, data []byte) (string, error)

	// Delete removes a previously saved image.
	Delete(path string) error
}

// LocalStorage implements the Storage interface using the local filesystem.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes the image under a sanitized filename and returns the full path.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, sanitizeFilename(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// Delete removes a saved image.
func (l *LocalStorage) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

var (
	filenameSpecials = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames: drops special
// characters, collapses whitespace, and truncates the base name.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	base = filenameSpecials.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}
