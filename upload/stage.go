package upload

import (
	"context"
	"fmt"
	"path/filepath"

	"Bobine/config"
	"Bobine/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// FS is the part of the backend bridge the stager writes through.
type FS interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	RemoveDir(ctx context.Context, path string) error
}

// Stager copies the store's files into <workDir>/<dataFolder> with the
// layout the backend reads: <dir>/<zone>/<dir>_<zone>_<id>_<name>.
type Stager struct {
	FS         FS
	DataFolder string
	// NewID returns the unique part of staged file names.
	NewID func() string
}

// Stage clears the backend folders, writes every held file and resets the
// store. On failure the store is left untouched so the user can retry.
func (st *Stager) Stage(ctx context.Context, store *Store, workDir string) (int, error) {
	root := filepath.Join(workDir, st.DataFolder)
	newID := st.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString()[:8] }
	}

	var dirs []string
	for _, c := range store.categories {
		for i := range c.Zones {
			dirs = append(dirs, c.BackendDir(i))
		}
	}
	for _, dir := range lo.Uniq(dirs) {
		if err := st.FS.RemoveDir(ctx, filepath.Join(root, dir)); err != nil {
			logger.WarnWithError(err, "failed to clear %s", dir)
		}
	}

	written := 0
	for _, slot := range store.Snapshot() {
		cat, _ := store.category(slot.Category)
		dir := cat.BackendDir(slot.Index)
		for _, f := range slot.Files {
			name := fmt.Sprintf("%s_%s_%s_%s", dir, slot.Zone, newID(), f.Name)
			dest := filepath.Join(root, dir, slot.Zone, name)
			if err := st.FS.WriteFile(ctx, dest, f.Data); err != nil {
				return written, fmt.Errorf("failed to stage %s: %w", f.Name, err)
			}
			written++
		}
	}

	logger.Info("staged %d file(s) into %s", written, root)
	store.Reset()
	return written, nil
}

func (s *Store) category(key string) (config.Category, bool) {
	for _, c := range s.categories {
		if c.Key == key {
			return c, true
		}
	}
	return config.Category{}, false
}
