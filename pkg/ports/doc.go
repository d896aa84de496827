// Package ports declares the interfaces the application core consumes.
//
// Adapters under pkg/adapters implement them:
//   - EventBus: memory, redis streams
//   - ResultStore, NotebookStore: memory, redis
//   - Interpreter: event bus client
//   - Executor: local process
//   - MetricsCollector: prometheus
package ports
