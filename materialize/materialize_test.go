package materialize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"run.csv", "text/csv"},
		{"RUN.CSV", "text/csv"},
		{"context.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"legacy.xls", "application/vnd.ms-excel"},
		{"notes.txt", "text/plain"},
		{"photo.jpeg", "image/jpeg"},
		{"export.raw", DefaultMediaType},
		{"no_extension", DefaultMediaType},
		{"archive.tar.gz", DefaultMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MediaType(tt.name))
		})
	}
}

func TestMaterializeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	contents := map[string][]byte{
		"online_1.csv":   []byte("time;area\n08:00;1.2\n"),
		"context.xlsx":   make([]byte, 2048),
		"instrument.dat": []byte{0x00, 0x01, 0x02},
	}
	var paths []string
	for name, data := range contents {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0644))
		paths = append(paths, p)
	}

	files, err := New(nil).Materialize(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, files, len(paths))

	for i, f := range files {
		assert.Equal(t, paths[i], f.SourcePath, "order follows input")
		want := contents[f.Name]
		assert.Equal(t, int64(len(want)), f.Size)
		assert.Equal(t, want, f.Data)
		assert.Equal(t, MediaType(f.Name), f.MediaType)
	}
}

func TestMaterializeAllOrNothing(t *testing.T) {
	read := func(path string) ([]byte, error) {
		if path == "/data/locked.csv" {
			return nil, os.ErrPermission
		}
		return []byte("ok"), nil
	}

	files, err := New(read).Materialize(context.Background(), []string{"/data/a.csv", "/data/locked.csv", "/data/b.csv"})

	assert.Nil(t, files)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.Contains(t, err.Error(), "/data/locked.csv")
}

func TestMaterializeWindowsPaths(t *testing.T) {
	read := func(string) ([]byte, error) { return []byte("x"), nil }

	files, err := New(read).Materialize(context.Background(), []string{`C:\Users\lab\Documents\run 1.csv`})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "run 1.csv", files[0].Name)
	assert.Equal(t, "text/csv", files[0].MediaType)
}

func TestMaterializeEmpty(t *testing.T) {
	files, err := New(nil).Materialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}
