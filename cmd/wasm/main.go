//go:build js && wasm

// Command wasm exposes the ring-road engine to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runSimulation(scenario) -> jsonString
//
// The scenario is YAML or JSON in the same shape the CLI reads; the result is
// the JSON-encoded engine.AnalysisOutput.
package main

import (
	"io"
	"log/slog"
	"syscall/js"

	"github.com/cxd309/ringwave/internal/engine"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	select {} // keep the WASM module alive until the page is closed
}

func runSimulation(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := engine.RunJSON(args[0].String(), logger)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
