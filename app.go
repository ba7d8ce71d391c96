package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"Bobine/backend"
	"Bobine/config"
	"Bobine/dropzone"
	"Bobine/logger"
	"Bobine/materialize"
	"Bobine/metrics"
	"Bobine/steps"
	"Bobine/upload"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// ==========================================================
// PATH VALIDATION
// ==========================================================

var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrInvalidExtension = errors.New("invalid file extension")
	ErrPathTraversal    = errors.New("path contains invalid traversal sequences")
	ErrPathNotAbsolute  = errors.New("path must be absolute")

	ErrNoFiles         = errors.New("no file to copy")
	ErrNothingToExport = errors.New("no metric selected")
	ErrNoReport        = errors.New("no report generated yet")
	ErrUnknownZone     = errors.New("unknown upload zone")
)

// ReportExtensions are the extensions accepted for the generated workbook.
var ReportExtensions = []string{".xlsx"}

// validateSavePath validates a path chosen for the report. It must be
// absolute and carry one of the allowed extensions.
func validateSavePath(path string, allowedExtensions []string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return "", ErrPathNotAbsolute
	}
	if strings.Contains(cleanPath, "..") {
		return "", ErrPathTraversal
	}

	if len(allowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(cleanPath))
		valid := false
		for _, allowed := range allowedExtensions {
			if ext == strings.ToLower(allowed) {
				valid = true
				break
			}
		}
		if !valid {
			return "", ErrInvalidExtension
		}
	}

	return cleanPath, nil
}

// ==========================================================
// SHELL (events, dialogs, clipboard)
// ==========================================================

// Events emitted to the frontend.
const (
	EventDropActive    = "drop:active"
	EventUploadChanged = "upload:changed"
	EventUploadError   = "upload:error"
)

type shell interface {
	Emit(event string, data interface{})
	OpenFiles(opts runtime.OpenDialogOptions) ([]string, error)
	SaveFile(opts runtime.SaveDialogOptions) (string, error)
	SetClipboard(text string) error
}

type wailsShell struct {
	ctx context.Context
}

func (s wailsShell) Emit(event string, data interface{}) {
	runtime.EventsEmit(s.ctx, event, data)
}

func (s wailsShell) OpenFiles(opts runtime.OpenDialogOptions) ([]string, error) {
	return runtime.OpenMultipleFilesDialog(s.ctx, opts)
}

func (s wailsShell) SaveFile(opts runtime.SaveDialogOptions) (string, error) {
	return runtime.SaveFileDialog(s.ctx, opts)
}

func (s wailsShell) SetClipboard(text string) error {
	return runtime.ClipboardSetText(s.ctx, text)
}

// ==========================================================
// APP
// ==========================================================

// App struct
type App struct {
	ctx     context.Context
	cfg     *config.Config
	backend backend.Backend

	shellMu sync.RWMutex
	shell   shell

	arb    *dropzone.Arbitrator
	files  *materialize.Materializer
	store  *upload.Store
	stager *upload.Stager
	engine *metrics.Engine

	mu         sync.Mutex
	nativeDrop bool
	lastReport string
}

// NewApp wires the wizard state around a backend.
func NewApp(cfg *config.Config, be backend.Backend) *App {
	a := &App{
		ctx:     context.Background(),
		cfg:     cfg,
		backend: be,
		files:   materialize.New(nil),
		store:   upload.NewStore(cfg.Categories),
	}
	a.stager = &upload.Stager{FS: be, DataFolder: cfg.DataFolder}
	a.arb = dropzone.NewArbitrator(dropzone.NewRegistry(), a.files)
	a.arb.Registry().OnChange(func(st dropzone.State) {
		a.emit(EventDropActive, st)
	})
	a.engine = metrics.NewEngine(nil, a.fetchTimeAxis)
	return a
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.setShell(wailsShell{ctx: ctx})

	ok := nativeDropSupported(goruntime.GOOS)
	if ok {
		runtime.OnFileDrop(ctx, a.onFileDrop)
	}
	a.mu.Lock()
	a.nativeDrop = ok
	a.mu.Unlock()
	logger.Info("native file drop available: %v", ok)
}

// nativeDropSupported reports whether the desktop runtime delivers dropped
// paths on goos. Elsewhere the picker is the only way in.
func nativeDropSupported(goos string) bool {
	switch goos {
	case "windows", "darwin", "linux":
		return true
	default:
		return false
	}
}

func (a *App) setShell(s shell) {
	a.shellMu.Lock()
	a.shell = s
	a.shellMu.Unlock()
}

func (a *App) emit(event string, data interface{}) {
	if a == nil {
		return
	}
	a.shellMu.RLock()
	s := a.shell
	a.shellMu.RUnlock()
	if s == nil {
		return
	}
	s.Emit(event, data)
}

// ==========================================================
// DRAG AND DROP
// ==========================================================

// ActionResponse is the result of a bound call with nothing to return.
type ActionResponse struct {
	Error string `json:"error"`
}

func errResponse(err error) ActionResponse {
	if err == nil {
		return ActionResponse{}
	}
	return ActionResponse{Error: err.Error()}
}

// NativeDropAvailable reports whether dropped paths arrive through the
// native channel.
func (a *App) NativeDropAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nativeDrop
}

// RegisterZone mounts a drop zone bound to one upload slot. Registering an
// id again replaces its rectangle.
func (a *App) RegisterZone(id string, rect dropzone.Rect, category string, index int) ActionResponse {
	cat, ok := a.cfg.Category(category)
	if id == "" || !ok || index < 0 || index >= len(cat.Zones) {
		return errResponse(fmt.Errorf("%w: %s[%d]", ErrUnknownZone, category, index))
	}
	a.arb.Registry().Register(id, rect, upload.SlotHandler{
		Store:     a.store,
		Category:  category,
		Index:     index,
		OnReceive: a.emitUploads,
	})
	return ActionResponse{}
}

// UnregisterZone unmounts a drop zone.
func (a *App) UnregisterZone(id string) {
	a.arb.Registry().Unregister(id)
}

// SetPixelRatio records window.devicePixelRatio.
func (a *App) SetPixelRatio(ratio float64) {
	a.arb.SetPixelRatio(ratio)
}

// DragEvent feeds an enter/over/leave/cancel event observed by the web view.
// A drop reported this way carries no paths and only ends the gesture; when
// native drop is available it is ignored, since the native drop that follows
// ends the gesture and needs the claim.
func (a *App) DragEvent(kind string, x, y float64, zone string) ActionResponse {
	k, ok := dropzone.ParseKind(kind)
	if !ok {
		return ActionResponse{Error: fmt.Sprintf("unknown drag event %q", kind)}
	}
	if k == dropzone.Drop && a.NativeDropAvailable() {
		return ActionResponse{}
	}
	ev := dropzone.Event{Kind: k, Zone: zone}
	if k == dropzone.Enter || k == dropzone.Over || k == dropzone.Drop {
		ev.Pos = &dropzone.Point{X: x, Y: y}
	}
	return errResponse(a.arb.Handle(a.ctx, ev))
}

// DropState returns the current claim.
func (a *App) DropState() dropzone.State {
	return a.arb.Registry().State()
}

func (a *App) onFileDrop(x, y int, paths []string) {
	ev := dropzone.Event{
		Kind:  dropzone.Drop,
		Pos:   &dropzone.Point{X: float64(x), Y: float64(y)},
		Paths: paths,
	}
	if err := a.arb.Handle(a.ctx, ev); err != nil {
		logger.WarnWithError(err, "drop of %d path(s) failed", len(paths))
		a.emit(EventUploadError, err.Error())
	}
}

// ==========================================================
// UPLOADS
// ==========================================================

// UploadResponse describes every upload slot.
type UploadResponse struct {
	Slots      []upload.Slot `json:"slots"`
	HasAnyFile bool          `json:"hasAnyFile"`
	Error      string        `json:"error"`
}

func (a *App) uploads(err error) UploadResponse {
	resp := UploadResponse{Slots: a.store.Snapshot(), HasAnyFile: a.store.HasAnyFile()}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (a *App) emitUploads() {
	a.emit(EventUploadChanged, a.uploads(nil))
}

// Uploads returns the upload slots.
func (a *App) Uploads() UploadResponse {
	return a.uploads(nil)
}

// HasAnyFile gates the upload step's "next" button.
func (a *App) HasAnyFile() bool {
	return a.store.HasAnyFile()
}

// PickFiles opens the native picker for one slot.
func (a *App) PickFiles(category string, index int) UploadResponse {
	a.shellMu.RLock()
	s := a.shell
	a.shellMu.RUnlock()
	if s == nil {
		return a.uploads(errors.New("no window"))
	}

	paths, err := s.OpenFiles(runtime.OpenDialogOptions{Title: "Sélectionner des fichiers"})
	if err != nil {
		logger.WithError(err, "file dialog failed")
		return a.uploads(err)
	}
	if len(paths) == 0 {
		return a.uploads(nil)
	}

	files, err := a.files.Materialize(a.ctx, paths)
	if err != nil {
		logger.WarnWithError(err, "failed to read picked files")
		return a.uploads(err)
	}
	if err := a.store.AddFiles(category, index, files); err != nil {
		logger.WarnWithError(err, "picked files refused")
		return a.uploads(err)
	}
	a.emitUploads()
	return a.uploads(nil)
}

// RemoveFile removes a file from a slot by name.
func (a *App) RemoveFile(category string, index int, name string) UploadResponse {
	if err := a.store.RemoveFile(category, index, name); err != nil {
		return a.uploads(err)
	}
	a.emitUploads()
	return a.uploads(nil)
}

// StageResponse is the result of copying the uploads to the working
// directory.
type StageResponse struct {
	Count      int    `json:"count"`
	WorkingDir string `json:"workingDir"`
	Error      string `json:"error"`
}

// StageUploads copies every held file into the backend's data folder and
// clears the previous selection state.
func (a *App) StageUploads() StageResponse {
	if !a.store.HasAnyFile() {
		return StageResponse{Error: ErrNoFiles.Error()}
	}
	dir, err := a.backend.DocumentsDir(a.ctx)
	if err != nil {
		logger.WithError(err, "working directory unavailable")
		return StageResponse{Error: err.Error()}
	}
	n, err := a.stager.Stage(a.ctx, a.store, dir)
	if err != nil {
		logger.WithError(err, "failed to copy files to %s", dir)
		return StageResponse{Count: n, WorkingDir: dir, Error: err.Error()}
	}
	a.engine.Reset(nil)
	a.emitUploads()
	return StageResponse{Count: n, WorkingDir: dir}
}

// ==========================================================
// METRICS
// ==========================================================

// ValidationResponse is the backend's verdict on the context file.
type ValidationResponse struct {
	backend.ContextValidation
	Error string `json:"error"`
}

// ValidateContext asks the backend to check the uploaded context file.
func (a *App) ValidateContext() ValidationResponse {
	dir, err := a.backend.DocumentsDir(a.ctx)
	if err != nil {
		return ValidationResponse{Error: err.Error()}
	}
	v, err := a.backend.ValidateContext(a.ctx, dir)
	if err != nil {
		logger.WithError(err, "context validation failed")
		return ValidationResponse{Error: err.Error()}
	}
	if !v.Valid {
		logger.Warn("context file rejected: %s (%s)", v.ErrorMessage, v.ErrorType)
	}
	return ValidationResponse{ContextValidation: v}
}

// MetricsResponse is the catalog offered on the selection screen.
type MetricsResponse struct {
	Catalog   metrics.Catalog           `json:"catalog"`
	Available []string                  `json:"available"`
	Warnings  map[metrics.Sensor]string `json:"warnings"`
	Error     string                    `json:"error"`
}

// LoadMetrics fetches the catalog and starts a fresh selection.
func (a *App) LoadMetrics() MetricsResponse {
	dir, err := a.backend.DocumentsDir(a.ctx)
	if err != nil {
		return MetricsResponse{Error: err.Error()}
	}
	catalog, err := a.backend.Catalog(a.ctx, dir)
	if err != nil {
		logger.WithError(err, "failed to load metrics")
		return MetricsResponse{Error: err.Error()}
	}
	a.engine.Reset(catalog)
	warnings := a.engine.Warnings()
	for sensor, msg := range warnings {
		logger.Warn("sensor %s unavailable: %s", sensor, msg)
	}
	return MetricsResponse{
		Catalog:   catalog,
		Available: a.engine.Available(),
		Warnings:  warnings,
	}
}

func (a *App) fetchTimeAxis(ctx context.Context) (metrics.TimeAxis, error) {
	dir, err := a.backend.DocumentsDir(ctx)
	if err != nil {
		return metrics.TimeAxis{}, err
	}
	axis, err := a.backend.TimeAxis(ctx, dir)
	if err != nil {
		logger.WithError(err, "failed to load time range")
		return metrics.TimeAxis{}, err
	}
	logger.Info("time range loaded: %s - %s (%d points)", axis.MinTime, axis.MaxTime, len(axis.UniqueTimes))
	return axis, nil
}

// SelectionResponse is the selection state after a change.
type SelectionResponse struct {
	Changed     bool              `json:"changed"`
	Selected    []string          `json:"selected"`
	AllSelected bool              `json:"allSelected"`
	Selection   metrics.Selection `json:"selection"`
	Error       string            `json:"error"`
}

func (a *App) selection(changed bool, err error) SelectionResponse {
	resp := SelectionResponse{
		Changed:     changed,
		Selected:    a.engine.Selected(),
		AllSelected: a.engine.IsAllSelected(),
		Selection:   a.engine.Export(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// Selection returns the current selection.
func (a *App) Selection() SelectionResponse {
	return a.selection(false, nil)
}

// ToggleMetric flips one metric.
func (a *App) ToggleMetric(key string) SelectionResponse {
	return a.selection(a.engine.Toggle(a.ctx, key), nil)
}

// AddElement adds a chemical element to a metric.
func (a *App) AddElement(key, element string) SelectionResponse {
	return a.selection(a.engine.AddElement(key, element), nil)
}

// RemoveElement removes a chemical element from a metric.
func (a *App) RemoveElement(key, element string) SelectionResponse {
	return a.selection(a.engine.RemoveElement(key, element), nil)
}

// SetTimeRange sets the range shared by a time-series sensor.
func (a *App) SetTimeRange(key, start, end string) SelectionResponse {
	_, err := a.engine.SetTimeRange(key, metrics.TimeRange{StartTime: start, EndTime: end})
	return a.selection(err == nil, err)
}

// SelectAll selects every available metric.
func (a *App) SelectAll() SelectionResponse {
	a.engine.SelectAll(a.ctx)
	return a.selection(true, nil)
}

// DeselectAll clears the selection.
func (a *App) DeselectAll() SelectionResponse {
	a.engine.DeselectAll()
	return a.selection(true, nil)
}

// IsAllSelected drives the select-all toggle.
func (a *App) IsAllSelected() bool {
	return a.engine.IsAllSelected()
}

// TimeAxis returns the time axis without fetching it.
func (a *App) TimeAxis() metrics.AxisState {
	return a.engine.TimeAxis()
}

// ==========================================================
// EXPORT
// ==========================================================

// ReportResponse is the result of a report generation.
type ReportResponse struct {
	Path      string `json:"path"`
	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error"`
}

// GenerateReport asks where to save the workbook and has the backend build
// it from the current selection.
func (a *App) GenerateReport() ReportResponse {
	sel := a.engine.Export()
	if sel.Empty() {
		return ReportResponse{Error: ErrNothingToExport.Error()}
	}

	a.shellMu.RLock()
	s := a.shell
	a.shellMu.RUnlock()
	if s == nil {
		return ReportResponse{Error: "no window"}
	}

	filename, err := s.SaveFile(runtime.SaveDialogOptions{
		Title:           "Enregistrer le rapport",
		DefaultFilename: "rapport.xlsx",
		Filters: []runtime.FileFilter{
			{DisplayName: "Classeur Excel (*.xlsx)", Pattern: "*.xlsx"},
		},
	})
	if err != nil {
		logger.WithError(err, "save dialog failed")
		return ReportResponse{Error: err.Error()}
	}
	if filename == "" {
		return ReportResponse{Cancelled: true}
	}
	dest, err := validateSavePath(filename, ReportExtensions)
	if err != nil {
		return ReportResponse{Error: err.Error()}
	}

	return a.generateReport(sel, dest)
}

func (a *App) generateReport(sel metrics.Selection, dest string) ReportResponse {
	dir, err := a.backend.DocumentsDir(a.ctx)
	if err != nil {
		return ReportResponse{Error: err.Error()}
	}
	path, err := a.backend.GenerateReport(a.ctx, dir, sel, dest)
	if err != nil {
		logger.WithError(err, "report generation failed")
		return ReportResponse{Error: err.Error()}
	}
	logger.Info("report written to %s", path)

	a.mu.Lock()
	a.lastReport = path
	a.mu.Unlock()
	return ReportResponse{Path: path}
}

// CopyReportPath puts the last report's path on the clipboard.
func (a *App) CopyReportPath() ActionResponse {
	a.mu.Lock()
	path := a.lastReport
	a.mu.Unlock()
	if path == "" {
		return errResponse(ErrNoReport)
	}

	a.shellMu.RLock()
	s := a.shell
	a.shellMu.RUnlock()
	if s == nil {
		return ActionResponse{Error: "no window"}
	}
	return errResponse(s.SetClipboard(path))
}

// ==========================================================
// NAVIGATION
// ==========================================================

// Steps returns the wizard steps in order.
func (a *App) Steps() []steps.Step {
	return steps.Steps()
}

// Navigation returns the previous/next targets of the screen at path.
func (a *App) Navigation(path string) steps.Navigation {
	return steps.For(path)
}

// Restart drops every upload, selection and report and returns to the first
// step.
func (a *App) Restart() string {
	a.store.Reset()
	a.engine.Reset(nil)
	a.mu.Lock()
	a.lastReport = ""
	a.mu.Unlock()
	a.emitUploads()
	logger.Info("wizard restarted")
	return steps.Upload
}
