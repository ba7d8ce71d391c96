//go:build js && wasm

// WASM entry point for the selection engine, used when the frontend runs in
// a plain browser without the desktop bridge.
// Compile with: GOOS=js GOARCH=wasm go build -o selection.wasm ./wasm
package main

import (
	"encoding/json"
	"syscall/js"

	"Bobine/metrics"
)

func errorResult(err error) map[string]interface{} {
	return map[string]interface{}{
		"error": err.Error(),
	}
}

// buildSelection is exposed to JavaScript.
// Takes the catalog JSON and the selection state JSON, returns
// { selection: string, state: string, allSelected: bool } or { error: string }.
func buildSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return map[string]interface{}{
			"error": "expected catalog and state JSON arguments",
		}
	}

	var catalog metrics.Catalog
	if err := json.Unmarshal([]byte(args[0].String()), &catalog); err != nil {
		return errorResult(err)
	}
	var st metrics.State
	if err := json.Unmarshal([]byte(args[1].String()), &st); err != nil {
		return errorResult(err)
	}

	engine := metrics.NewEngine(catalog, nil)
	engine.Restore(st)

	sel, err := json.Marshal(engine.Export())
	if err != nil {
		return errorResult(err)
	}
	normalized, err := json.Marshal(engine.State())
	if err != nil {
		return errorResult(err)
	}
	return map[string]interface{}{
		"selection":   string(sel),
		"state":       string(normalized),
		"allSelected": engine.IsAllSelected(),
	}
}

// availableKeys returns the selectable metric keys of a catalog.
func availableKeys(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{
			"error": "missing catalog JSON argument",
		}
	}
	var catalog metrics.Catalog
	if err := json.Unmarshal([]byte(args[0].String()), &catalog); err != nil {
		return errorResult(err)
	}

	keys := metrics.NewEngine(catalog, nil).Available()
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return map[string]interface{}{
		"keys": out,
	}
}

func main() {
	bobine := js.Global().Get("Object").New()
	bobine.Set("buildSelection", js.FuncOf(buildSelection))
	bobine.Set("availableKeys", js.FuncOf(availableKeys))
	js.Global().Set("bobine", bobine)

	// Keep the Go runtime alive
	select {}
}
