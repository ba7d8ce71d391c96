package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Bobine/logger"
	"Bobine/metrics"
)

// Actions understood by the Python data processor.
const (
	ActionValidateContext = "VALIDATE_CONTEXT"
	ActionGraphsAvailable = "GET_GRAPHS_AVAILABLE"
	ActionTimeRange       = "GET_TIME_RANGE"
	ActionGenerateExcel   = "GENERATE_EXCEL_TO_FILE"
)

// Caller sends one action to the data processor. *Process implements it.
type Caller interface {
	Call(ctx context.Context, action string, args ...string) (json.RawMessage, error)
}

// Bridge is the production Backend.
type Bridge struct {
	Local
	Proc    Caller
	Timeout time.Duration
}

var _ Backend = (*Bridge)(nil)

func (b *Bridge) call(ctx context.Context, out interface{}, action string, args ...string) error {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := b.Proc.Call(ctx, action, args...)
	logger.Debug("backend %s took %s", action, time.Since(start).Round(time.Millisecond))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, action, err)
	}
	return nil
}

func (b *Bridge) ValidateContext(ctx context.Context, dir string) (ContextValidation, error) {
	var v ContextValidation
	err := b.call(ctx, &v, ActionValidateContext, dir)
	return v, err
}

func (b *Bridge) Catalog(ctx context.Context, dir string) (metrics.Catalog, error) {
	var c metrics.Catalog
	if err := b.call(ctx, &c, ActionGraphsAvailable, dir); err != nil {
		return nil, err
	}
	return c, nil
}

func (b *Bridge) TimeAxis(ctx context.Context, dir string) (metrics.TimeAxis, error) {
	var a metrics.TimeAxis
	err := b.call(ctx, &a, ActionTimeRange, dir)
	return a, err
}

func (b *Bridge) GenerateReport(ctx context.Context, dir string, sel metrics.Selection, dest string) (string, error) {
	payload, err := json.Marshal(sel)
	if err != nil {
		return "", err
	}
	var path string
	if err := b.call(ctx, &path, ActionGenerateExcel, string(payload), dir, dest); err != nil {
		return "", err
	}
	if path == "" {
		path = dest
	}
	return path, nil
}
