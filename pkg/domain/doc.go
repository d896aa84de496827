// Package domain holds the notebook data model shared by the orchestrator,
// the renderers, the adapters and the API layer.
package domain
