package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Local implements the file-system half of the bridge natively.
type Local struct {
	// WorkingDir overrides the Documents directory when set.
	WorkingDir string
}

func cleanAbs(path string) (string, error) {
	clean := filepath.Clean(path)
	if path == "" || !filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: %q", ErrPathNotAbsolute, path)
	}
	return clean, nil
}

// DocumentsDir returns the working directory root.
func (l Local) DocumentsDir(ctx context.Context) (string, error) {
	if l.WorkingDir != "" {
		return l.WorkingDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDocumentsDir, err)
	}
	return filepath.Join(home, "Documents"), nil
}

// WriteFile writes data to path, creating parent directories.
func (l Local) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := cleanAbs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// RemoveDir deletes path recursively. A missing directory is not an error.
func (l Local) RemoveDir(ctx context.Context, path string) error {
	dir, err := cleanAbs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}
