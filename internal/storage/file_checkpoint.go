package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// fileCheckpoint keeps the value in a single text file.
type fileCheckpoint struct {
	path string
}

func newFileCheckpoint(path string) *fileCheckpoint {
	return &fileCheckpoint{path: path}
}

func (f *fileCheckpoint) Read(context.Context) (string, bool, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read checkpoint file: %w", err)
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Write replaces the file atomically via rename.
func (f *fileCheckpoint) Write(_ context.Context, value string) error {
	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}

func (f *fileCheckpoint) Close() error { return nil }
