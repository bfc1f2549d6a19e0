// Package embedded ships a sample macro, data file and config that
// "rowpilot init" writes out as a starting point.
package embedded

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/jeeftor/rowpilot/internal/logging"
)

//go:embed samples/*
var samplesFS embed.FS

const root = "samples"

// ErrExists is returned when a sample would overwrite a file
var ErrExists = fs.ErrExist

// List returns the sample file names
func List() ([]string, error) {
	entries, err := fs.ReadDir(samplesFS, root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Content returns one sample's bytes
func Content(name string) ([]byte, error) {
	return samplesFS.ReadFile(root + "/" + name)
}

// Extract writes every sample into dir and returns the paths written.
// Existing files are left alone unless force is set.
func Extract(dir string, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	names, err := List()
	if err != nil {
		return nil, err
	}

	var written []string
	for _, name := range names {
		target := filepath.Join(dir, name)
		if _, err := os.Stat(target); err == nil && !force {
			return written, fmt.Errorf("%s: %w", target, ErrExists)
		}
		data, err := Content(name)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", target, err)
		}
		logging.Debug("Sample extracted", "path", target)
		written = append(written, target)
	}
	return written, nil
}
