package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "Bobine_data", cfg.DataFolder)
	assert.Equal(t, "python3", cfg.Backend.Python)
	assert.Equal(t, 2*time.Minute, time.Duration(cfg.Backend.Timeout))

	online, ok := cfg.Category("gc_online")
	require.True(t, ok)
	require.Len(t, online.Zones, 2)
	assert.Equal(t, 5, online.Zones[0].MaxFiles)
	assert.Equal(t, "chromeleon", online.BackendDir(0))
	assert.Equal(t, "chromeleon_online_permanent_gas", online.BackendDir(1))
	assert.Equal(t, "chromeleon", online.BackendDir(7))

	_, ok = cfg.Category("unknown")
	assert.False(t, ok)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "no zones",
			yaml:    "log_level: debug\n",
			wantErr: ErrNoZones,
		},
		{
			name: "zero max files",
			yaml: `
zones:
  - key: pignat
    dir: pignat
    zones:
      - name: pignat
        max_files: 0
`,
			wantErr: ErrInvalidMaximum,
		},
		{
			name: "duplicate key",
			yaml: `
zones:
  - key: pignat
    zones: [{name: a, max_files: 1}]
  - key: pignat
    zones: [{name: b, max_files: 1}]
`,
			wantErr: ErrDuplicateKey,
		},
		{
			name: "unnamed zone",
			yaml: `
zones:
  - key: pignat
    zones: [{max_files: 1}]
`,
			wantErr: ErrEmptyName,
		},
		{
			name: "valid",
			yaml: `
zones:
  - key: pignat
    zones: [{name: pignat, max_files: 2}]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Bobine_data", cfg.DataFolder)
		})
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nbackend:\n  timeout: 30s\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Backend.Timeout))
	assert.Equal(t, "python3", cfg.Backend.Python)
	assert.Len(t, cfg.Categories, 4, "zones fall back to the defaults")
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Categories, cfg.Categories)
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  timeout: soon\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
