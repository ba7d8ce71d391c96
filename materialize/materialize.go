// Package materialize turns dropped file-system paths into in-memory files.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultMediaType is used for extensions missing from the table.
const DefaultMediaType = "application/octet-stream"

var ErrUnreadable = errors.New("unable to read file")

var mediaTypes = map[string]string{
	// Text
	"txt": "text/plain",
	"csv": "text/csv",

	// Spreadsheets
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",

	// Documents
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",

	// Data
	"json": "application/json",
	"xml":  "application/xml",

	// Archives
	"zip": "application/zip",
	"rar": "application/x-rar-compressed",

	// Images
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",

	// Video / audio
	"mp4": "video/mp4",
	"avi": "video/x-msvideo",
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
}

// File is an uploaded file held in memory until it is staged.
type File struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MediaType  string `json:"mediaType"`
	SourcePath string `json:"sourcePath,omitempty"`
	Data       []byte `json:"-"`
}

// Reader reads a whole file. os.ReadFile satisfies it.
type Reader func(path string) ([]byte, error)

// MediaType infers the MIME type from the extension of name.
func MediaType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if mt, ok := mediaTypes[ext]; ok {
		return mt
	}
	return DefaultMediaType
}

// baseName handles both separators since drag payloads are OS-native and
// tests run on any OS.
func baseName(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	name := path[i+1:]
	if name == "" {
		return "unknown"
	}
	return name
}

// NewFile wraps already-loaded bytes, e.g. from the file picker.
func NewFile(name string, data []byte) File {
	return File{
		Name:      baseName(name),
		Size:      int64(len(data)),
		MediaType: MediaType(name),
		Data:      data,
	}
}

// Materializer reads paths through a Reader.
type Materializer struct {
	read  Reader
	limit int
}

// New returns a Materializer. A nil reader means os.ReadFile.
func New(read Reader) *Materializer {
	if read == nil {
		read = os.ReadFile
	}
	return &Materializer{read: read, limit: 4}
}

// Materialize reads every path concurrently. It is all-or-nothing: the first
// failing path fails the batch and no files are returned.
func (m *Materializer) Materialize(ctx context.Context, paths []string) ([]File, error) {
	files := make([]File, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := m.read(path)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
			}
			f := NewFile(path, data)
			f.SourcePath = path
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
