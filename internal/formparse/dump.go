// File: internal/formparse/dump.go
package formparse

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andybalholm/brotli"
)

// dumpSnapshot writes markup brotli-compressed into dir and returns the path.
// Dumps exist so markup drift can be diagnosed after the fact.
func dumpSnapshot(dir, markup string, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("form-%s.html.br", at.UTC().Format("20060102T150405.000000000")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	w := brotli.NewWriterLevel(f, brotli.DefaultCompression)
	if _, err := w.Write([]byte(markup)); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("flush snapshot: %w", err)
	}
	return path, nil
}
