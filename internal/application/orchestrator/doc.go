// Package orchestrator implements the cell execution lifecycle.
//
// The orchestrator manager coordinates script cell runs by:
//   - Dispatching cell source to the interpreter service
//   - Tracking in-flight runs in the execution registry
//   - Arming a soft timeout and a hard cleanup deadline per run
//   - Materializing results through the output renderer
//   - Publishing cell state changes to the event bus
//
// The validator checks persisted notebooks before they replace the active one.
package orchestrator
