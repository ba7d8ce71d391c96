package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"Bobine/logger"
	"Bobine/materialize"
	"Bobine/metrics"
	"Bobine/upload"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	stageFiles []string

	jsonOutput bool

	exportMetrics  []string
	exportElements []string
	exportAll      bool
	exportStart    string
	exportEnd      string
	exportOut      string
)

var errInvalidContext = errors.New("context file rejected")

// stageCmd copies instrument files into the data folder
var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Copy instrument files into the working directory",
	Long: `Copies files into <dir>/<data_folder> with the layout the data processor
reads. Each --file names its upload zone as <category>[:<index>]=<path>.

Example:
  bobine stage --file context=contexte.xlsx --file gc_online:1=gaz.txt`,
	RunE: runStage,
}

// validateCmd checks the staged context file
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the staged context file",
	RunE:  runValidate,
}

// metricsCmd lists the metric catalog
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the metrics available for the staged files",
	RunE:  runMetrics,
}

// exportCmd generates the report
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Generate the Excel report",
	Long: `Selects metrics by key (as printed by "bobine metrics") and asks the data
processor for the workbook.

Example:
  bobine export --metric pignat-0 --start 08:00 --end 09:30 \
    --metric chromeleon_online-0 --element chromeleon_online-0=CO --out rapport.xlsx`,
	RunE: runExport,
}

func init() {
	stageCmd.Flags().StringArrayVarP(&stageFiles, "file", "f", nil, "<category>[:<index>]=<path>, repeatable")
	_ = stageCmd.MarkFlagRequired("file")

	metricsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw catalog")

	exportCmd.Flags().StringSliceVarP(&exportMetrics, "metric", "m", nil, "metric key, repeatable")
	exportCmd.Flags().StringArrayVarP(&exportElements, "element", "e", nil, "<metric key>=<element>, repeatable")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "select every available metric")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "start time of the time-series range")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "end time of the time-series range")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "rapport.xlsx", "report path")
}

type fileArg struct {
	Category string
	Index    int
	Path     string
}

// parseFileArg parses <category>[:<index>]=<path>.
func parseFileArg(s string) (fileArg, error) {
	zone, path, ok := strings.Cut(s, "=")
	if !ok || zone == "" || path == "" {
		return fileArg{}, fmt.Errorf("invalid --file %q: want <category>[:<index>]=<path>", s)
	}
	arg := fileArg{Category: zone, Path: path}
	if cat, idx, found := strings.Cut(zone, ":"); found {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return fileArg{}, fmt.Errorf("invalid zone index in %q", s)
		}
		arg.Category, arg.Index = cat, n
	}
	return arg, nil
}

func runStage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store := upload.NewStore(cfg.Categories)
	files := materialize.New(nil)

	for _, s := range stageFiles {
		arg, err := parseFileArg(s)
		if err != nil {
			return err
		}
		read, err := files.Materialize(ctx, []string{arg.Path})
		if err != nil {
			return err
		}
		if err := store.AddFiles(arg.Category, arg.Index, read); err != nil {
			return err
		}
	}

	dir, err := be.DocumentsDir(ctx)
	if err != nil {
		return err
	}
	stager := &upload.Stager{FS: be, DataFolder: cfg.DataFolder}
	n, err := stager.Stage(ctx, store, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) copied to %s\n", n, filepath.Join(dir, cfg.DataFolder))
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := be.DocumentsDir(ctx)
	if err != nil {
		return err
	}
	v, err := be.ValidateContext(ctx, dir)
	if err != nil {
		return err
	}
	if !v.Valid {
		return fmt.Errorf("%w: %s (%s)", errInvalidContext, v.ErrorMessage, v.ErrorType)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "context file OK")
	return nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := be.DocumentsDir(ctx)
	if err != nil {
		return err
	}
	catalog, err := be.Catalog(ctx, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	}
	return printCatalog(out, catalog)
}

func printCatalog(w io.Writer, catalog metrics.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tMETRIC\tAVAILABLE\tELEMENTS")
	for _, sensor := range metrics.Sensors {
		sm, ok := catalog[sensor]
		if !ok {
			continue
		}
		if sm.Failed() {
			fmt.Fprintf(tw, "%s\t(error)\t-\t%s\n", sensor, sm.Err)
			continue
		}
		for i, m := range sm.Metrics {
			avail := "yes"
			if !m.Available {
				avail = "no"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", metrics.Key(sensor, i), m.Name, avail, strings.Join(m.ChemicalElements, ","))
		}
	}
	return tw.Flush()
}

type selectionOptions struct {
	All      bool
	Metrics  []string
	Elements []string
	Range    metrics.TimeRange
}

// buildSelection applies the options to engine and returns the export
// request. Unknown or unavailable keys are errors here, unlike in the
// interactive wizard.
func buildSelection(ctx context.Context, engine *metrics.Engine, opts selectionOptions) (metrics.Selection, error) {
	if opts.All {
		engine.SelectAll(ctx)
	}
	available := engine.Available()
	for _, key := range opts.Metrics {
		if !lo.Contains(available, key) {
			return metrics.Selection{}, fmt.Errorf("metric %q is not available", key)
		}
		if !engine.IsSelected(key) {
			engine.Toggle(ctx, key)
		}
	}
	for _, e := range opts.Elements {
		key, element, ok := strings.Cut(e, "=")
		if !ok {
			return metrics.Selection{}, fmt.Errorf("invalid --element %q: want <metric key>=<element>", e)
		}
		if !engine.IsSelected(key) {
			engine.Toggle(ctx, key)
		}
		if !engine.AddElement(key, element) && !lo.Contains(engine.Elements(key), element) {
			return metrics.Selection{}, fmt.Errorf("element %q is not offered by %s", element, key)
		}
	}

	if !opts.Range.IsZero() {
		if _, err := engine.LoadAxis(ctx); err != nil {
			return metrics.Selection{}, fmt.Errorf("failed to load time range: %w", err)
		}
		if _, err := engine.SetTimeRange(metrics.Pignat.GlobalKey(), opts.Range); err != nil {
			return metrics.Selection{}, err
		}
	}

	sel := engine.Export()
	if sel.Empty() {
		return metrics.Selection{}, errors.New("no metric selected")
	}
	return sel, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir, err := be.DocumentsDir(ctx)
	if err != nil {
		return err
	}
	dest, err := filepath.Abs(exportOut)
	if err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(dest), ".xlsx") {
		return fmt.Errorf("report must be an .xlsx file: %s", dest)
	}

	catalog, err := be.Catalog(ctx, dir)
	if err != nil {
		return err
	}
	for sensor, msg := range catalog.Warnings() {
		logger.Warn("sensor %s unavailable: %s", sensor, msg)
	}

	engine := metrics.NewEngine(catalog, func(ctx context.Context) (metrics.TimeAxis, error) {
		return be.TimeAxis(ctx, dir)
	})
	sel, err := buildSelection(ctx, engine, selectionOptions{
		All:      exportAll,
		Metrics:  exportMetrics,
		Elements: exportElements,
		Range:    metrics.TimeRange{StartTime: exportStart, EndTime: exportEnd},
	})
	if err != nil {
		return err
	}

	path, err := be.GenerateReport(ctx, dir, sel, dest)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
