// Package interpreter provides the interpreter service adapters.
//
// The factory creates executors based on configuration.
// Currently supports:
//   - process: runs each source in a fresh interpreter process
//
// The bus subpackage implements the orchestrator side, submitting sources to
// the worker pool over the event bus.
package interpreter
