// Package backend is the bridge to the external data processor: native file
// operations plus the Python process that parses instrument files and builds
// the workbook.
package backend

import (
	"context"
	"errors"
	"fmt"

	"Bobine/metrics"
)

var (
	ErrNoDocumentsDir     = errors.New("unable to locate the Documents directory")
	ErrPathNotAbsolute    = errors.New("path must be absolute")
	ErrBackendUnavailable = errors.New("backend process unavailable")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrInvalidArgument    = errors.New("argument contains a tab or newline")
)

// Backend is everything the wizard asks of the outside world.
type Backend interface {
	DocumentsDir(ctx context.Context) (string, error)
	ValidateContext(ctx context.Context, dir string) (ContextValidation, error)
	Catalog(ctx context.Context, dir string) (metrics.Catalog, error)
	TimeAxis(ctx context.Context, dir string) (metrics.TimeAxis, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	RemoveDir(ctx context.Context, path string) error
	// GenerateReport writes the workbook to dest and returns the path the
	// backend reports. A backend-side failure is an *ActionError.
	GenerateReport(ctx context.Context, dir string, sel metrics.Selection, dest string) (string, error)
}

// ContextValidation is the backend's verdict on the uploaded context file.
type ContextValidation struct {
	Valid        bool   `json:"valid"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

// ActionError is an error the backend returned in its response envelope.
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}
